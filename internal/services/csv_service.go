package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ledgermail/core/internal/database/models"
	"github.com/ledgermail/core/internal/storage"
)

const (
	// CSVExportLimit caps the number of rows of a CSV export
	CSVExportLimit = 1000

	csvTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var csvHeader = []string{
	"Subject",
	"Sender Name",
	"Sender Email",
	"Category",
	"Amount",
	"Status",
	"Received Date",
	"Labels",
}

// CSVService builds CSV exports of filtered email listings
type CSVService struct {
	store storage.Storage
	now   func() time.Time
}

// NewCSVService creates a new CSVService instance
func NewCSVService(store storage.Storage) *CSVService {
	return &CSVService{store: store, now: time.Now}
}

// Filename returns the download name of an export made today
func (s *CSVService) Filename() string {
	return "emails-export-" + s.now().UTC().Format("2006-01-02") + ".csv"
}

// Export lists at most CSVExportLimit emails matching filter and renders them.
// The filter's limit and offset are ignored.
func (s *CSVService) Export(ctx context.Context, filter storage.EmailFilter) ([]byte, error) {
	filter.Limit = CSVExportLimit
	filter.Offset = 0

	emails, err := s.store.ListEmails(ctx, filter)
	if err != nil {
		return nil, err
	}
	return BuildCSV(emails), nil
}

// quoteCSV wraps a field in double quotes, doubling embedded quotes
func quoteCSV(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// BuildCSV renders emails with every field quoted
func BuildCSV(emails []models.EmailWithLabels) []byte {
	lines := make([]string, 0, len(emails)+1)
	lines = append(lines, strings.Join(csvHeader, ","))

	for _, e := range emails {
		amount := ""
		if e.Amount != nil {
			amount = strconv.FormatFloat(*e.Amount, 'f', 2, 64)
		}

		labels := make([]string, len(e.Labels))
		for i, l := range e.Labels {
			labels[i] = l.Name
		}

		fields := []string{
			e.Subject,
			e.SenderName,
			e.SenderEmail,
			e.Category,
			amount,
			e.Status,
			e.ReceivedAt.UTC().Format(csvTimeLayout),
			strings.Join(labels, "; "),
		}
		for i, f := range fields {
			fields[i] = quoteCSV(f)
		}
		lines = append(lines, strings.Join(fields, ","))
	}

	return []byte(strings.Join(lines, "\n"))
}
