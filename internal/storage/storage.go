// Package storage is the query and aggregation engine over the entity store.
// It answers listing and analytics queries for emails, labels, attachments
// and users. Input is assumed to be validated by the caller; backing-store
// faults are reported as apperrors storage errors.
package storage

import (
	"context"
	"time"

	"github.com/ledgermail/core/internal/apperrors"
	"github.com/ledgermail/core/internal/database/models"
)

var (
	// ErrEmailNotFound indicates the email does not exist
	ErrEmailNotFound = apperrors.NotFound("Email not found")
	// ErrLabelNotFound indicates the label does not exist
	ErrLabelNotFound = apperrors.NotFound("Label not found")
	// ErrUserNotFound indicates the user does not exist
	ErrUserNotFound = apperrors.NotFound("User not found")
	// ErrUserAlreadyExists indicates the username or email is taken
	ErrUserAlreadyExists = apperrors.Conflict("User already exists", nil)
	// ErrInvalidTransition indicates a forbidden status change
	ErrInvalidTransition = apperrors.Validation("Invalid status transition", nil)
)

const (
	// DefaultListLimit is used when a listing does not specify a limit
	DefaultListLimit = 50
	// MaxListLimit is the largest page size the API accepts
	MaxListLimit = 1000
	// enrichConcurrency bounds the per-email enrichment fan-out
	enrichConcurrency = 8
	// topCategoryCount is the number of groups returned by GetExpensesByCategory
	topCategoryCount = 5
	// volumeMonths is the trailing window of GetTransactionVolume
	volumeMonths = 6
)

// EmailFilter holds the criteria of an email listing. Zero values mean
// "no filter"; a zero Limit means DefaultListLimit.
type EmailFilter struct {
	Limit    int
	Offset   int
	Search   string
	Category string
	DateFrom *time.Time
	DateTo   *time.Time
}

// EmailPatch is a partial email update; nil fields are left untouched
type EmailPatch struct {
	Subject      *string
	Snippet      *string
	SenderName   *string
	SenderEmail  *string
	Amount       *float64
	Category     *string
	Status       *string
	DriveFileID  *string
	DriveFileURL *string
	ReceivedAt   *time.Time
}

// LabelPatch is a partial label update; nil fields are left untouched
type LabelPatch struct {
	Name        *string
	Color       *string
	Description *string
}

// DashboardMetrics are the headline numbers of the dashboard
type DashboardMetrics struct {
	TotalEmails         int64   `json:"totalEmails"`
	UncategorizedEmails int64   `json:"uncategorizedEmails"`
	TotalDocuments      int64   `json:"totalDocuments"`
	MonthlyExpenses     float64 `json:"monthlyExpenses"`
}

// CategoryExpense is the summed amount of one category
type CategoryExpense struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// MonthVolume is the number of emails received in one calendar month
type MonthVolume struct {
	Name   string `json:"name"`
	Emails int64  `json:"emails"`
}

// Contact is a per-sender rollup of emails
type Contact struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailCount    int64     `json:"emailCount"`
	TotalAmount   float64   `json:"totalAmount"`
	LastEmailDate time.Time `json:"lastEmailDate"`
}

// Storage is the repository over the entity store
type Storage interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// Emails
	ListEmails(ctx context.Context, filter EmailFilter) ([]models.EmailWithLabels, error)
	GetEmailByID(ctx context.Context, id string) (*models.EmailWithLabels, error)
	CreateEmail(ctx context.Context, email *models.Email) (*models.Email, error)
	UpdateEmail(ctx context.Context, id string, patch EmailPatch) (*models.Email, error)
	DeleteEmail(ctx context.Context, id string) error
	MarkExported(ctx context.Context, id, fileID, fileURL string) (*models.Email, error)

	// Labels
	ListLabels(ctx context.Context) ([]models.Label, error)
	GetLabel(ctx context.Context, id uint) (*models.Label, error)
	CreateLabel(ctx context.Context, label *models.Label) (*models.Label, error)
	UpdateLabel(ctx context.Context, id uint, patch LabelPatch) (*models.Label, error)
	DeleteLabel(ctx context.Context, id uint) error
	AttachLabel(ctx context.Context, emailID string, labelID uint) (*models.EmailLabel, error)
	DetachLabel(ctx context.Context, emailID string, labelID uint) error

	// Attachments
	CreateAttachment(ctx context.Context, attachment *models.Attachment) (*models.Attachment, error)
	ListAttachments(ctx context.Context, emailID string) ([]models.Attachment, error)

	// Aggregates
	GetDashboardMetrics(ctx context.Context) (*DashboardMetrics, error)
	GetExpensesByCategory(ctx context.Context) ([]CategoryExpense, error)
	GetTransactionVolume(ctx context.Context) ([]MonthVolume, error)
	GetContacts(ctx context.Context) ([]Contact, error)
}
