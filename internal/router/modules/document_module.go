package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/healthcare-storefront/internal/interface/http"
	"github.com/oksasatya/healthcare-storefront/internal/interface/middleware"
)

// DocumentModule serves POST /api/documents for signed-in users.
type DocumentModule struct {
	Handler *handlers.DocumentHandler
	JWT     middleware.TokenParser
}

func NewDocumentModule(h *handlers.DocumentHandler, jwt middleware.TokenParser) *DocumentModule {
	return &DocumentModule{Handler: h, JWT: jwt}
}

func (m *DocumentModule) Register(rg *gin.RouterGroup) {
	rg.POST("/documents", middleware.Auth(m.JWT), m.Handler.Upload)
}
