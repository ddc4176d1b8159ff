package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/internal/application"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
	"github.com/oksasatya/healthcare-storefront/pkg/response"
)

// writeError maps service errors to a status and a fixed client message.
// Internal detail only reaches the log.
func writeError(c *gin.Context, logger *logrus.Logger, err error) {
	switch {
	case errors.Is(err, application.ErrValidation):
		response.Error[any](c, http.StatusBadRequest, "invalid payload", nil)
	case errors.Is(err, application.ErrInvalidCredentials):
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.Is(err, application.ErrEmailTaken):
		response.Error[any](c, http.StatusConflict, "email already registered", nil)
	case errors.Is(err, application.ErrUserNotFound):
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
	case errors.Is(err, application.ErrInvalidResetToken):
		response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
	case errors.Is(err, application.ErrUnsupportedDocument):
		response.Error[any](c, http.StatusBadRequest, "unsupported document", nil)
	default:
		if logger != nil {
			helpers.RequestLogger(logger, c).WithError(err).Error("request failed")
		}
		response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
	}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}
