package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/smilemakc/mbflow/internal/infrastructure/api/rest"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	"github.com/smilemakc/mbflow/internal/workflowengine"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Router builds C8's gin engine: the six workflow endpoints, the bot's
// inbound /messages contract endpoint, and /health, sharing the
// teacher's logging/recovery/body-size middleware stack plus
// OpenTelemetry request spans (A4).
func Router(engine *workflowengine.Engine, ping func() error, log *logger.Logger, maxBodyBytes int64) *gin.Engine {
	router := gin.New()

	recovery := rest.NewRecoveryMiddleware(log)
	logging := rest.NewLoggingMiddleware(log)
	bodySize := rest.NewBodySizeMiddleware(log, maxBodyBytes)
	router.Use(otelgin.Middleware("mbflow"), recovery.Recovery(), logging.RequestLogger(), bodySize.LimitBodySize())

	health := NewHealthHandlers(ping)
	router.GET("/health", health.Health)

	messages := NewMessageHandlers(engine)
	router.POST("/messages", messages.Receive)

	workflows := NewWorkflowHandlers(engine)
	wf := router.Group("/workflow")
	{
		wf.POST("/start", workflows.Start)
		wf.POST("/:id/signal/:name", workflows.Signal)
		wf.GET("/:id/status", workflows.Status)
		wf.GET("/:id/query/:name", workflows.Query)
		wf.POST("/:id/cancel", workflows.Cancel)
		wf.POST("/:id/terminate", workflows.Terminate)
	}

	return router
}
