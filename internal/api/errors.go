package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// statusFor 同步引擎错误到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyInProgress), errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrTransientNetwork):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *logrus.Logger, action string, err error) {
	status := statusFor(err)
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.Error(action + " failed")
	} else {
		entry.Warn(action + " rejected")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
