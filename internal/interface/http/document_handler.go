package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/internal/application"
	"github.com/oksasatya/healthcare-storefront/internal/interface/middleware"
	"github.com/oksasatya/healthcare-storefront/pkg/response"
	"github.com/oksasatya/healthcare-storefront/pkg/validation"
)

const maxDocumentBytes = 10 << 20

type DocumentStore interface {
	Store(ctx context.Context, userID, kind, contentType string, r io.Reader) (*application.Document, error)
}

type DocumentHandler struct {
	Docs   DocumentStore
	Logger *logrus.Logger
}

func NewDocumentHandler(docs DocumentStore, logger *logrus.Logger) *DocumentHandler {
	return &DocumentHandler{Docs: docs, Logger: logger}
}

type uploadDocumentRequest struct {
	Kind string `form:"kind" binding:"required,dockind"`
}

// Upload POST /api/documents (multipart: kind, file)
func (h *DocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentBytes)
	var req uploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"file": "is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{"file": "cannot be read"})
		return
	}
	defer func() { _ = f.Close() }()

	doc, err := h.Docs.Store(c.Request.Context(), c.GetString(middleware.CtxUserIDKey), req.Kind, fh.Header.Get("Content-Type"), f)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, doc, "document uploaded", nil)
}
