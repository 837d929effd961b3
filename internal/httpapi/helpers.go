package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func respondJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

func respondAPIError(c *gin.Context, err error) {
	apiErr := translateError(err)
	c.JSON(apiErr.HTTPStatus, apiErr)
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fmt.Sprintf("%s is invalid: %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			c.JSON(http.StatusBadRequest, newAPIError("VALIDATION_FAILED", strings.Join(msgs, "; "), http.StatusBadRequest))
		} else {
			c.JSON(http.StatusBadRequest, errInvalidJSON)
		}
		return false
	}
	return true
}
