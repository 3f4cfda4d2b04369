package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ledgermail/core/internal/apperrors"
	"github.com/ledgermail/core/internal/database/models"
	"github.com/ledgermail/core/internal/storage"
)

// ExportedFile identifies a document produced by an Exporter
type ExportedFile struct {
	FileID  string `json:"fileId"`
	FileURL string `json:"fileUrl"`
}

// Exporter renders an email to an external document store
type Exporter interface {
	Export(ctx context.Context, email *models.EmailWithLabels) (*ExportedFile, error)
}

// DriveExporter produces drive-style file references without contacting any
// remote service
type DriveExporter struct {
	now func() time.Time
}

// NewDriveExporter creates a new DriveExporter instance
func NewDriveExporter() *DriveExporter {
	return &DriveExporter{now: time.Now}
}

// Export returns a file reference derived from the email id and the current time
func (e *DriveExporter) Export(ctx context.Context, email *models.EmailWithLabels) (*ExportedFile, error) {
	fileID := fmt.Sprintf("pdf_%s_%d", email.ID, e.now().UnixMilli())
	return &ExportedFile{
		FileID:  fileID,
		FileURL: "https://drive.google.com/file/d/" + fileID + "/view",
	}, nil
}

// ExportService exports single emails and records the resulting file
type ExportService struct {
	store    storage.Storage
	exporter Exporter
}

// NewExportService creates a new ExportService instance
func NewExportService(store storage.Storage, exporter Exporter) *ExportService {
	return &ExportService{
		store:    store,
		exporter: exporter,
	}
}

// ExportEmail exports the email and marks it exported. When the exporter
// fails the stored email is left untouched.
func (s *ExportService) ExportEmail(ctx context.Context, emailID string) (*ExportedFile, error) {
	email, err := s.store.GetEmailByID(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, storage.ErrEmailNotFound
	}

	file, err := s.exporter.Export(ctx, email)
	if err != nil {
		log.Printf("[Export] Failed to export email %s: %v", emailID, err)
		return nil, apperrors.Storage("failed to export email", err)
	}

	if _, err := s.store.MarkExported(ctx, emailID, file.FileID, file.FileURL); err != nil {
		return nil, err
	}

	log.Printf("[Export] Exported email %s as %s", emailID, file.FileID)
	return file, nil
}
