package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandlers answers GET /health (spec.md §6:
// `{status:"healthy", engine:"connected", uptime}`).
type HealthHandlers struct {
	startedAt time.Time
	ping      func() error
}

func NewHealthHandlers(ping func() error) *HealthHandlers {
	return &HealthHandlers{startedAt: time.Now(), ping: ping}
}

func (h *HealthHandlers) Health(c *gin.Context) {
	engineStatus := "connected"
	status := http.StatusOK
	if err := h.ping(); err != nil {
		engineStatus = "disconnected"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status": map[bool]string{true: "healthy", false: "unhealthy"}[status == http.StatusOK],
		"engine": engineStatus,
		"uptime": time.Since(h.startedAt).String(),
	})
}
