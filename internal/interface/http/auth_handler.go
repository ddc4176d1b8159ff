package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/pkg/response"
	"github.com/oksasatya/healthcare-storefront/pkg/validation"
)

// AuthHandler serves the password reset flow.
type AuthHandler struct {
	Accounts Accounts
	Logger   *logrus.Logger
}

func NewAuthHandler(accounts Accounts, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Logger: logger}
}

// ResetInit POST /api/auth/reset/init {email}
// Always answers 200 so the endpoint cannot be used to probe for accounts.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Accounts.InitPasswordReset(c.Request.Context(), req.Email, clientIP(c), c.GetHeader("User-Agent")); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"sent": true}, "if the account exists, a reset link was sent", nil)
}

// ResetConfirm POST /api/auth/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,pwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Accounts.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}
