package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/healthcare-storefront/internal/interface/http"
	"github.com/oksasatya/healthcare-storefront/internal/interface/middleware"
)

// Module wires user HTTP handlers and JWT middleware into routes
// Public: POST /api/login, POST /api/register
// Protected: POST /api/logout, GET /api/profile, PUT /api/profile, PUT /api/profile/password
// All routes are registered under the given RouterGroup (usually /api)

type Module struct {
	Handler *handlers.UserHandler
	JWT     middleware.TokenParser
}

func New(h *handlers.UserHandler, jwt middleware.TokenParser) *Module {
	return &Module{Handler: h, JWT: jwt}
}

func (m *Module) Register(rg *gin.RouterGroup) {
	rg.POST("/login", m.Handler.Login)
	rg.POST("/register", m.Handler.Register)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.JWT))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
		auth.PUT("/profile/password", m.Handler.ChangePassword)
	}
}
