package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/internal/application"
	"github.com/oksasatya/healthcare-storefront/internal/domain/entity"
	"github.com/oksasatya/healthcare-storefront/internal/interface/middleware"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
	"github.com/oksasatya/healthcare-storefront/pkg/response"
	"github.com/oksasatya/healthcare-storefront/pkg/validation"
)

// Authenticator runs the login flow.
type Authenticator interface {
	Login(ctx context.Context, in application.LoginInput) (*application.LoginResult, error)
}

// Accounts covers account writes outside login.
type Accounts interface {
	Register(ctx context.Context, in application.RegisterInput) (*entity.User, error)
	GetProfile(ctx context.Context, userID string) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID string, in application.UpdateProfileInput) (*entity.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	InitPasswordReset(ctx context.Context, email, ip, userAgent string) error
	ConfirmPasswordReset(ctx context.Context, token, next string) error
	NotifyLogin(ctx context.Context, res *application.LoginResult, ip, userAgent string)
}

type UserHandler struct {
	Auth     Authenticator
	Accounts Accounts
	Logger   *logrus.Logger
	Cookies  *helpers.Manager
}

func NewUserHandler(auth Authenticator, accounts Accounts, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{Auth: auth, Accounts: accounts, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,pwd"`
	FirstName string `json:"first_name" binding:"required,personname"`
	LastName  string `json:"last_name" binding:"omitempty,personname"`
}

type updateProfileRequest struct {
	FirstName string `json:"first_name" binding:"omitempty,personname"`
	LastName  string `json:"last_name" binding:"omitempty,personname"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,pwd"`
}

// Login POST /api/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	ip, ua := clientIP(c), c.GetHeader("User-Agent")
	res, err := h.Auth.Login(c.Request.Context(), application.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        ip,
		UserAgent: ua,
		RequestID: c.GetString("request_id"),
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}

	h.Cookies.SetAccess(c, res.Token, res.ExpiresAt)
	if h.Accounts != nil {
		go h.Accounts.NotifyLogin(context.WithoutCancel(c.Request.Context()), res, ip, ua)
	}
	response.Flat(c, http.StatusOK, gin.H{
		"token":            res.Token,
		"user":             res.User,
		"passwordMigrated": res.PasswordMigrated,
	})
}

// Register POST /api/register
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Accounts.Register(c.Request.Context(), application.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, profileView(u), "registered", nil)
}

func (h *UserHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	u, err := h.Accounts.GetProfile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, profileView(u), "profile", nil)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Accounts.UpdateProfile(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), application.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, profileView(u), "profile updated", nil)
}

// ChangePassword PUT /api/profile/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	err := h.Accounts.ChangePassword(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"changed": true}, "password updated", nil)
}

func profileView(u *entity.User) gin.H {
	return gin.H{
		"id":               u.ID,
		"email":            u.Email,
		"firstName":        u.FirstName,
		"lastName":         u.LastName,
		"isCalendarLinked": u.IsCalendarLinked(),
		"created_at":       u.CreatedAt.Format(time.RFC3339),
		"updated_at":       u.UpdatedAt.Format(time.RFC3339),
	}
}
