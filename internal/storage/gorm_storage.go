package storage

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgermail/core/internal/apperrors"
	"github.com/ledgermail/core/internal/database/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// GormStorage implements Storage on top of gorm
type GormStorage struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStorage creates a new GormStorage instance
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{
		db:  db,
		now: time.Now,
	}
}

// WithClock returns a copy of the storage that reads the current time from now
func (s *GormStorage) WithClock(now func() time.Time) *GormStorage {
	return &GormStorage{db: s.db, now: now}
}

// RoundAmount rounds a monetary amount to cents
func RoundAmount(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// escapeLike escapes LIKE wildcards so the search term matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ---------------------------------------------------------------------------
// Users

// CreateUser persists a new user. Username and email must be unused.
func (s *GormStorage) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", user.Username, user.Email).
		Count(&count).Error; err != nil {
		return nil, apperrors.Storage("failed to check user", err)
	}
	if count > 0 {
		return nil, ErrUserAlreadyExists
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = s.now().UTC()

	if err := db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, apperrors.Storage("failed to create user", err)
	}
	return user, nil
}

func (s *GormStorage) findUser(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(column+" = ?", value).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperrors.Storage("failed to load user", err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *GormStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id", id)
}

// GetUserByUsername retrieves a user by username
func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "username", username)
}

// GetUserByEmail retrieves a user by email address
func (s *GormStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email", email)
}

// ListUsers returns all users ordered by creation time
func (s *GormStorage) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, apperrors.Storage("failed to list users", err)
	}
	return users, nil
}

// ---------------------------------------------------------------------------
// Emails

// ListEmails returns the filtered, paginated emails enriched with their
// labels and attachments, most recently received first.
func (s *GormStorage) ListEmails(ctx context.Context, filter EmailFilter) ([]models.EmailWithLabels, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := s.db.WithContext(ctx).Model(&models.Email{})

	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		query = query.Where(s.subjectMatch(), pattern)
	}
	if filter.Category != "" && filter.Category != models.AllCategories {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.DateFrom != nil {
		query = query.Where("received_at >= ?", filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		query = query.Where("received_at <= ?", filter.DateTo.UTC())
	}

	var emails []models.Email
	if err := query.
		Order("received_at DESC").
		Order("created_at ASC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&emails).Error; err != nil {
		return nil, apperrors.Storage("failed to list emails", err)
	}

	return s.enrichAll(ctx, emails)
}

// subjectMatch returns the case-insensitive subject predicate for the
// connected dialect. SQLite LIKE already ignores ASCII case and leaves
// other characters untouched, which LOWER() would not.
func (s *GormStorage) subjectMatch() string {
	if s.db.Dialector.Name() == "postgres" {
		return `subject ILIKE ? ESCAPE '\'`
	}
	return `subject LIKE ? ESCAPE '\'`
}

// enrichAll loads labels and attachments for every email concurrently.
// Either every email is enriched or the whole call fails.
func (s *GormStorage) enrichAll(ctx context.Context, emails []models.Email) ([]models.EmailWithLabels, error) {
	result := make([]models.EmailWithLabels, len(emails))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range emails {
		i := i
		g.Go(func() error {
			enriched, err := s.enrich(gctx, emails[i])
			if err != nil {
				return err
			}
			result[i] = *enriched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Storage("failed to load email relations", err)
	}

	return result, nil
}

func (s *GormStorage) enrich(ctx context.Context, email models.Email) (*models.EmailWithLabels, error) {
	db := s.db.WithContext(ctx)

	labels := []models.Label{}
	if err := db.Model(&models.Label{}).
		Select("labels.*").
		Joins("JOIN email_labels ON email_labels.label_id = labels.id").
		Where("email_labels.email_id = ?", email.ID).
		Order("labels.id ASC").
		Find(&labels).Error; err != nil {
		return nil, err
	}

	attachments := []models.Attachment{}
	if err := db.Where("email_id = ?", email.ID).
		Order("id ASC").
		Find(&attachments).Error; err != nil {
		return nil, err
	}

	return &models.EmailWithLabels{
		Email:       email,
		Labels:      labels,
		Attachments: attachments,
	}, nil
}

// GetEmailByID returns the enriched email, or nil when it does not exist
func (s *GormStorage) GetEmailByID(ctx context.Context, id string) (*models.EmailWithLabels, error) {
	var email models.Email
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Storage("failed to load email", err)
	}

	enriched, err := s.enrich(ctx, email)
	if err != nil {
		return nil, apperrors.Storage("failed to load email relations", err)
	}
	return enriched, nil
}

// CreateEmail persists a new email, filling category and status defaults
func (s *GormStorage) CreateEmail(ctx context.Context, email *models.Email) (*models.Email, error) {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	if email.Category == "" {
		email.Category = models.DefaultCategory
	}
	if email.Status == "" {
		email.Status = models.StatusPending
	}
	if !models.IsValidStatus(email.Status) {
		return nil, ErrInvalidTransition
	}
	if email.Status == models.StatusExported && !hasURL(email.DriveFileURL) {
		return nil, ErrInvalidTransition
	}
	if email.Amount != nil {
		rounded := RoundAmount(*email.Amount)
		email.Amount = &rounded
	}

	now := s.now().UTC()
	email.ReceivedAt = email.ReceivedAt.UTC()
	email.CreatedAt = now
	email.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(email).Error; err != nil {
		return nil, apperrors.Storage("failed to create email", err)
	}
	return email, nil
}

// UpdateEmail merges patch onto the stored email and stamps updatedAt
func (s *GormStorage) UpdateEmail(ctx context.Context, id string, patch EmailPatch) (*models.Email, error) {
	var updated models.Email

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var email models.Email
		if err := tx.Where("id = ?", id).First(&email).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEmailNotFound
			}
			return err
		}

		if patch.Status != nil {
			if !models.CanTransition(email.Status, *patch.Status) {
				return ErrInvalidTransition
			}
			url := email.DriveFileURL
			if patch.DriveFileURL != nil {
				url = patch.DriveFileURL
			}
			if *patch.Status == models.StatusExported && !hasURL(url) {
				return ErrInvalidTransition
			}
		}

		updates := map[string]interface{}{
			"updated_at": s.now().UTC(),
		}
		if patch.Subject != nil {
			updates["subject"] = *patch.Subject
		}
		if patch.Snippet != nil {
			updates["snippet"] = *patch.Snippet
		}
		if patch.SenderName != nil {
			updates["sender_name"] = *patch.SenderName
		}
		if patch.SenderEmail != nil {
			updates["sender_email"] = *patch.SenderEmail
		}
		if patch.Amount != nil {
			updates["amount"] = RoundAmount(*patch.Amount)
		}
		if patch.Category != nil {
			updates["category"] = *patch.Category
		}
		if patch.Status != nil {
			updates["status"] = *patch.Status
		}
		if patch.DriveFileID != nil {
			updates["drive_file_id"] = *patch.DriveFileID
		}
		if patch.DriveFileURL != nil {
			updates["drive_file_url"] = *patch.DriveFileURL
		}
		if patch.ReceivedAt != nil {
			updates["received_at"] = patch.ReceivedAt.UTC()
		}

		if err := tx.Model(&models.Email{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) || apperrors.Is(err, apperrors.KindValidation) {
			return nil, err
		}
		return nil, apperrors.Storage("failed to update email", err)
	}

	return &updated, nil
}

// hasURL reports whether an exported email would carry a document link
func hasURL(url *string) bool {
	return url != nil && strings.TrimSpace(*url) != ""
}

// DeleteEmail removes the email with its attachments and label links.
// Deleting an unknown id is a no-op.
func (s *GormStorage) DeleteEmail(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email_id = ?", id).Delete(&models.EmailLabel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("email_id = ?", id).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Email{}).Error
	})
	if err != nil {
		return apperrors.Storage("failed to delete email", err)
	}
	return nil
}

// MarkExported sets status, file id and file URL in a single statement so no
// reader can observe an exported email without its file reference.
func (s *GormStorage) MarkExported(ctx context.Context, id, fileID, fileURL string) (*models.Email, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&models.Email{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         models.StatusExported,
		"drive_file_id":  fileID,
		"drive_file_url": fileURL,
		"updated_at":     s.now().UTC(),
	})
	if res.Error != nil {
		return nil, apperrors.Storage("failed to mark email exported", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrEmailNotFound
	}

	var email models.Email
	if err := db.Where("id = ?", id).First(&email).Error; err != nil {
		return nil, apperrors.Storage("failed to load email", err)
	}
	return &email, nil
}

// ---------------------------------------------------------------------------
// Labels

// ListLabels returns all labels ordered by name
func (s *GormStorage) ListLabels(ctx context.Context) ([]models.Label, error) {
	labels := []models.Label{}
	if err := s.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&labels).Error; err != nil {
		return nil, apperrors.Storage("failed to list labels", err)
	}
	return labels, nil
}

// GetLabel retrieves a label by ID
func (s *GormStorage) GetLabel(ctx context.Context, id uint) (*models.Label, error) {
	var label models.Label
	if err := s.db.WithContext(ctx).First(&label, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLabelNotFound
		}
		return nil, apperrors.Storage("failed to load label", err)
	}
	return &label, nil
}

// CreateLabel persists a new label
func (s *GormStorage) CreateLabel(ctx context.Context, label *models.Label) (*models.Label, error) {
	label.Name = strings.TrimSpace(label.Name)
	if label.Name == "" {
		return nil, apperrors.Validation("Invalid label data", map[string]string{"name": "must not be empty"})
	}
	if label.Color == "" {
		label.Color = models.DefaultLabelColor
	}
	label.CreatedAt = s.now().UTC()

	if err := s.db.WithContext(ctx).Create(label).Error; err != nil {
		return nil, apperrors.Storage("failed to create label", err)
	}
	return label, nil
}

// UpdateLabel merges patch onto the stored label
func (s *GormStorage) UpdateLabel(ctx context.Context, id uint, patch LabelPatch) (*models.Label, error) {
	db := s.db.WithContext(ctx)

	label, err := s.GetLabel(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.Validation("Invalid label data", map[string]string{"name": "must not be empty"})
		}
		updates["name"] = name
	}
	if patch.Color != nil {
		updates["color"] = *patch.Color
	}
	if patch.Description != nil {
		updates["description"] = *patch.Description
	}
	if len(updates) == 0 {
		return label, nil
	}

	if err := db.Model(&models.Label{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, apperrors.Storage("failed to update label", err)
	}
	return s.GetLabel(ctx, id)
}

// DeleteLabel removes the label and its email links. Unknown ids are a no-op.
func (s *GormStorage) DeleteLabel(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("label_id = ?", id).Delete(&models.EmailLabel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Label{}).Error
	})
	if err != nil {
		return apperrors.Storage("failed to delete label", err)
	}
	return nil
}

// emailExists reports whether an email with the given id is stored
func (s *GormStorage) emailExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Email{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AttachLabel links a label to an email. Linking twice returns the existing link.
func (s *GormStorage) AttachLabel(ctx context.Context, emailID string, labelID uint) (*models.EmailLabel, error) {
	exists, err := s.emailExists(ctx, emailID)
	if err != nil {
		return nil, apperrors.Storage("failed to load email", err)
	}
	if !exists {
		return nil, ErrEmailNotFound
	}
	if _, err := s.GetLabel(ctx, labelID); err != nil {
		return nil, err
	}

	link := models.EmailLabel{EmailID: emailID, LabelID: labelID}
	if err := s.db.WithContext(ctx).
		Where("email_id = ? AND label_id = ?", emailID, labelID).
		FirstOrCreate(&link).Error; err != nil {
		return nil, apperrors.Storage("failed to attach label", err)
	}
	return &link, nil
}

// DetachLabel removes the link between an email and a label
func (s *GormStorage) DetachLabel(ctx context.Context, emailID string, labelID uint) error {
	if err := s.db.WithContext(ctx).
		Where("email_id = ? AND label_id = ?", emailID, labelID).
		Delete(&models.EmailLabel{}).Error; err != nil {
		return apperrors.Storage("failed to detach label", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Attachments

// CreateAttachment stores an attachment for an existing email
func (s *GormStorage) CreateAttachment(ctx context.Context, attachment *models.Attachment) (*models.Attachment, error) {
	exists, err := s.emailExists(ctx, attachment.EmailID)
	if err != nil {
		return nil, apperrors.Storage("failed to load email", err)
	}
	if !exists {
		return nil, ErrEmailNotFound
	}

	attachment.CreatedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		return nil, apperrors.Storage("failed to create attachment", err)
	}
	return attachment, nil
}

// ListAttachments returns the attachments of an email
func (s *GormStorage) ListAttachments(ctx context.Context, emailID string) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	if err := s.db.WithContext(ctx).Where("email_id = ?", emailID).Order("id ASC").Find(&attachments).Error; err != nil {
		return nil, apperrors.Storage("failed to list attachments", err)
	}
	return attachments, nil
}
