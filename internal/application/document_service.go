package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
)

var ErrUnsupportedDocument = errors.New("unsupported document")

// Document kinds a customer may upload.
const (
	DocumentInsuranceCard = "insurance_card"
	DocumentPrescription  = "prescription"
)

var allowedDocumentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

type Document struct {
	Kind        string    `json:"kind"`
	URL         string    `json:"url"`
	ObjectPath  string    `json:"object_path"`
	ContentType string    `json:"content_type"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Uploader writes r to bucket/objectPath and returns the object URL.
type Uploader func(ctx context.Context, bucket, objectPath, contentType string, r io.Reader) (string, error)

// GCSUploader adapts a storage client to Uploader.
func GCSUploader(client *storage.Client) Uploader {
	return func(ctx context.Context, bucket, objectPath, contentType string, r io.Reader) (string, error) {
		return helpers.UploadObject(ctx, client, bucket, objectPath, contentType, r)
	}
}

type DocumentService struct {
	Upload Uploader
	Bucket string
	Prefix string
	Logger *logrus.Logger
}

func NewDocumentService(upload Uploader, bucket, prefix string, logger *logrus.Logger) *DocumentService {
	return &DocumentService{Upload: upload, Bucket: bucket, Prefix: prefix, Logger: logger}
}

// Store uploads one document under <prefix>/<userID>/<kind>/<uuid><ext>. The
// extension follows the content type, never the client file name.
func (s *DocumentService) Store(ctx context.Context, userID, kind, contentType string, r io.Reader) (*Document, error) {
	if s.Upload == nil || s.Bucket == "" {
		return nil, fmt.Errorf("%w: document storage not configured", ErrDependency)
	}
	if kind != DocumentInsuranceCard && kind != DocumentPrescription {
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedDocument, kind)
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := allowedDocumentTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedDocument, contentType)
	}

	objectPath := filepath.ToSlash(filepath.Join(s.Prefix, userID, kind, uuid.NewString()+ext))
	url, err := s.Upload(ctx, s.Bucket, objectPath, contentType, r)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Error("document upload failed")
		}
		return nil, fmt.Errorf("%w: upload: %v", ErrDependency, err)
	}
	return &Document{Kind: kind, URL: url, ObjectPath: objectPath, ContentType: contentType, UploadedAt: time.Now().UTC()}, nil
}
