package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgermail/core/internal/apperrors"
	"github.com/ledgermail/core/internal/database"
	"github.com/ledgermail/core/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *GormStorage {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	return NewGormStorage(db)
}

func ptr[T any](v T) *T { return &v }

func newEmail(subject, category string, amount *float64, receivedAt time.Time) *models.Email {
	return &models.Email{
		Subject:     subject,
		SenderName:  "Acme Billing",
		SenderEmail: "billing@acme.test",
		Category:    category,
		Amount:      amount,
		ReceivedAt:  receivedAt,
	}
}

func TestCreateEmail_RoundTripWithDefaults(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	received := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	created, err := s.CreateEmail(ctx, &models.Email{
		Subject:     "Your invoice",
		Snippet:     ptr("Amount due"),
		SenderName:  "Acme",
		SenderEmail: "billing@acme.test",
		Amount:      ptr(12.345),
		ReceivedAt:  received,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := s.GetEmailByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Your invoice", got.Subject)
	assert.Equal(t, "Amount due", *got.Snippet)
	assert.Equal(t, "Acme", got.SenderName)
	assert.Equal(t, "billing@acme.test", got.SenderEmail)
	assert.InDelta(t, 12.35, *got.Amount, 0.0001)
	assert.Equal(t, models.DefaultCategory, got.Category)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.True(t, received.Equal(got.ReceivedAt))
	assert.Empty(t, got.Labels)
	assert.Empty(t, got.Attachments)
}

func TestGetEmailByID_MissingReturnsNil(t *testing.T) {
	s := setupTestStorage(t)

	got, err := s.GetEmailByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteEmail_IsIdempotentAndCascades(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	email, err := s.CreateEmail(ctx, newEmail("Receipt", "Receipt", nil, time.Now()))
	require.NoError(t, err)
	label, err := s.CreateLabel(ctx, &models.Label{Name: "Tax"})
	require.NoError(t, err)
	_, err = s.AttachLabel(ctx, email.ID, label.ID)
	require.NoError(t, err)
	_, err = s.CreateAttachment(ctx, &models.Attachment{
		EmailID: email.ID, Filename: "receipt.pdf", MimeType: "application/pdf", Size: 10,
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteEmail(ctx, email.ID))
	require.NoError(t, s.DeleteEmail(ctx, email.ID))

	got, err := s.GetEmailByID(ctx, email.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	attachments, err := s.ListAttachments(ctx, email.ID)
	require.NoError(t, err)
	assert.Empty(t, attachments)

	metrics, err := s.GetDashboardMetrics(ctx)
	require.NoError(t, err)
	assert.Zero(t, metrics.TotalDocuments)

	// the label itself survives
	_, err = s.GetLabel(ctx, label.ID)
	assert.NoError(t, err)
}

func TestUpdateEmail(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	email, err := s.CreateEmail(ctx, newEmail("Bill", "Utilities", ptr(40.0), time.Now()))
	require.NoError(t, err)

	t.Run("merges partial fields and stamps updatedAt", func(t *testing.T) {
		later := time.Now().Add(time.Hour)
		updated, err := s.WithClock(func() time.Time { return later }).UpdateEmail(ctx, email.ID, EmailPatch{
			Category: ptr("Invoice"),
			Status:   ptr(models.StatusProcessed),
		})
		require.NoError(t, err)
		assert.Equal(t, "Invoice", updated.Category)
		assert.Equal(t, models.StatusProcessed, updated.Status)
		assert.Equal(t, "Bill", updated.Subject)
		assert.InDelta(t, 40.0, *updated.Amount, 0.0001)
		assert.True(t, updated.UpdatedAt.After(email.UpdatedAt))
	})

	t.Run("exported requires a document url", func(t *testing.T) {
		_, err := s.UpdateEmail(ctx, email.ID, EmailPatch{Status: ptr(models.StatusExported)})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		_, err = s.UpdateEmail(ctx, email.ID, EmailPatch{Status: ptr(models.StatusExported), DriveFileURL: ptr("  ")})
		assert.ErrorIs(t, err, ErrInvalidTransition)

		got, err := s.GetEmailByID(ctx, email.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusProcessed, got.Status)
		assert.Nil(t, got.DriveFileURL)
	})

	t.Run("rejects leaving exported", func(t *testing.T) {
		updated, err := s.UpdateEmail(ctx, email.ID, EmailPatch{
			Status:       ptr(models.StatusExported),
			DriveFileURL: ptr("https://files.test/bill"),
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusExported, updated.Status)
		assert.Equal(t, "https://files.test/bill", *updated.DriveFileURL)

		_, err = s.UpdateEmail(ctx, email.ID, EmailPatch{Status: ptr(models.StatusPending)})
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		_, err := s.UpdateEmail(ctx, "missing", EmailPatch{Subject: ptr("x")})
		assert.ErrorIs(t, err, ErrEmailNotFound)
	})
}

func TestUpdateEmail_ExportedWithStoredURL(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	email := newEmail("Receipt", "Receipt", nil, time.Now())
	email.DriveFileURL = ptr("https://files.test/receipt")
	created, err := s.CreateEmail(ctx, email)
	require.NoError(t, err)

	updated, err := s.UpdateEmail(ctx, created.ID, EmailPatch{Status: ptr(models.StatusExported)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusExported, updated.Status)
	assert.Equal(t, "https://files.test/receipt", *updated.DriveFileURL)
}

func TestCreateEmail_StatusRules(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	t.Run("exported without url is rejected", func(t *testing.T) {
		email := newEmail("Invoice", "Invoice", nil, time.Now())
		email.Status = models.StatusExported
		_, err := s.CreateEmail(ctx, email)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		listed, err := s.ListEmails(ctx, EmailFilter{})
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("exported with url is stored", func(t *testing.T) {
		email := newEmail("Invoice", "Invoice", nil, time.Now())
		email.Status = models.StatusExported
		email.DriveFileURL = ptr("https://files.test/invoice")
		created, err := s.CreateEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, models.StatusExported, created.Status)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		email := newEmail("Invoice", "Invoice", nil, time.Now())
		email.Status = "archived"
		_, err := s.CreateEmail(ctx, email)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})
}

func TestMarkExported(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	email, err := s.CreateEmail(ctx, newEmail("Invoice", "Invoice", nil, time.Now()))
	require.NoError(t, err)

	exported, err := s.MarkExported(ctx, email.ID, "file-1", "https://files.test/file-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExported, exported.Status)
	require.NotNil(t, exported.DriveFileURL)
	assert.Equal(t, "https://files.test/file-1", *exported.DriveFileURL)
	assert.Equal(t, "file-1", *exported.DriveFileID)

	_, err = s.MarkExported(ctx, "missing", "f", "u")
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestListEmails_Pagination(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.CreateEmail(ctx, newEmail("Mail", "Invoice", nil, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	page, err := s.ListEmails(ctx, EmailFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].ReceivedAt.Equal(base.Add(3*time.Hour)))
	assert.True(t, page[1].ReceivedAt.Equal(base.Add(2*time.Hour)))
}

func TestListEmails_LimitAboveDefaultReturnsEverything(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	emails := make([]models.Email, 1005)
	for i := range emails {
		emails[i] = models.Email{
			ID:          fmt.Sprintf("bulk-%04d", i),
			Subject:     "Bulk",
			SenderName:  "Acme",
			SenderEmail: "billing@acme.test",
			Category:    models.DefaultCategory,
			Status:      models.StatusPending,
			ReceivedAt:  base.Add(time.Duration(i) * time.Minute),
			CreatedAt:   base,
			UpdatedAt:   base,
		}
	}
	require.NoError(t, s.db.CreateInBatches(emails, 200).Error)

	listed, err := s.ListEmails(ctx, EmailFilter{Limit: 2000})
	require.NoError(t, err)
	require.Len(t, listed, 1005)

	seen := make(map[string]bool, len(listed))
	for _, e := range listed {
		assert.False(t, seen[e.ID], "duplicate %s", e.ID)
		seen[e.ID] = true
	}
}

func TestListEmails_SearchMatchesNonASCII(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateEmail(ctx, newEmail("ÉTAT de compte", "Invoice", nil, time.Now()))
	require.NoError(t, err)
	_, err = s.CreateEmail(ctx, newEmail("Monthly invoice", "Invoice", nil, time.Now()))
	require.NoError(t, err)

	for _, term := range []string{"ÉTAT", "TAT", "de COMPTE", "ÉTAT de compte"} {
		listed, err := s.ListEmails(ctx, EmailFilter{Search: term})
		require.NoError(t, err)
		require.Len(t, listed, 1, "search %q", term)
		assert.Equal(t, "ÉTAT de compte", listed[0].Subject)
	}

	listed, err := s.ListEmails(ctx, EmailFilter{Search: "INVOICE"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Monthly invoice", listed[0].Subject)
}

func TestListEmails_SearchKeepsSurroundingSpaces(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateEmail(ctx, newEmail("coffee order", "Receipt", nil, time.Now()))
	require.NoError(t, err)
	_, err = s.CreateEmail(ctx, newEmail("Bank fee notice", "Invoice", nil, time.Now()))
	require.NoError(t, err)

	listed, err := s.ListEmails(ctx, EmailFilter{Search: " fee"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Bank fee notice", listed[0].Subject)
}

func TestListEmails_SearchEscapesWildcards(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateEmail(ctx, newEmail("100% paid", "Invoice", nil, time.Now()))
	require.NoError(t, err)
	_, err = s.CreateEmail(ctx, newEmail("1000 paid", "Invoice", nil, time.Now()))
	require.NoError(t, err)

	listed, err := s.ListEmails(ctx, EmailFilter{Search: "0%"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "100% paid", listed[0].Subject)
}

func TestLabelLifecycle(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	email, err := s.CreateEmail(ctx, newEmail("Statement", "Invoice", nil, time.Now()))
	require.NoError(t, err)

	urgent, err := s.CreateLabel(ctx, &models.Label{Name: "Urgent", Color: "#FF0000"})
	require.NoError(t, err)
	_, err = s.CreateLabel(ctx, &models.Label{Name: "Archive"})
	require.NoError(t, err)

	labels, err := s.ListLabels(ctx)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "Archive", labels[0].Name)
	assert.Equal(t, models.DefaultLabelColor, labels[0].Color)

	// linking twice keeps a single link
	_, err = s.AttachLabel(ctx, email.ID, urgent.ID)
	require.NoError(t, err)
	_, err = s.AttachLabel(ctx, email.ID, urgent.ID)
	require.NoError(t, err)

	listed, err := s.ListEmails(ctx, EmailFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Len(t, listed[0].Labels, 1)
	assert.Equal(t, "Urgent", listed[0].Labels[0].Name)
	assert.Equal(t, "#FF0000", listed[0].Labels[0].Color)

	renamed, err := s.UpdateLabel(ctx, urgent.ID, LabelPatch{Name: ptr("Very urgent")})
	require.NoError(t, err)
	assert.Equal(t, "Very urgent", renamed.Name)
	assert.Equal(t, "#FF0000", renamed.Color)

	require.NoError(t, s.DeleteLabel(ctx, urgent.ID))
	require.NoError(t, s.DeleteLabel(ctx, urgent.ID))

	listed, err = s.ListEmails(ctx, EmailFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed[0].Labels)

	_, err = s.UpdateLabel(ctx, urgent.ID, LabelPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrLabelNotFound)

	_, err = s.AttachLabel(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestLabelNameIsTrimmed(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateLabel(ctx, &models.Label{Name: "   "})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	label, err := s.CreateLabel(ctx, &models.Label{Name: "  Taxes "})
	require.NoError(t, err)
	assert.Equal(t, "Taxes", label.Name)

	_, err = s.UpdateLabel(ctx, label.ID, LabelPatch{Name: ptr(" \t ")})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	renamed, err := s.UpdateLabel(ctx, label.ID, LabelPatch{Name: ptr(" Tax 2026 ")})
	require.NoError(t, err)
	assert.Equal(t, "Tax 2026", renamed.Name)
}

func TestDashboardScenario(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s = s.WithClock(func() time.Time { return now })

	_, err := s.CreateEmail(ctx, newEmail("A", "Invoice", ptr(100.0), now.AddDate(0, 0, -2)))
	require.NoError(t, err)
	_, err = s.CreateEmail(ctx, newEmail("B", "Invoice", ptr(50.0), now.AddDate(0, -1, 0)))
	require.NoError(t, err)
	_, err = s.CreateEmail(ctx, newEmail("C", "", nil, now))
	require.NoError(t, err)

	expenses, err := s.GetExpensesByCategory(ctx)
	require.NoError(t, err)
	assert.Contains(t, expenses, CategoryExpense{Name: "Invoice", Amount: 150})

	metrics, err := s.GetDashboardMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), metrics.TotalEmails)
	assert.Equal(t, int64(1), metrics.UncategorizedEmails)
	assert.Equal(t, int64(0), metrics.TotalDocuments)
	assert.InDelta(t, 100.0, metrics.MonthlyExpenses, 0.0001)
}

func TestDashboardMetrics_MonthWindowIncludesLastDay(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	now := time.Date(2026, 10, 5, 9, 0, 0, 0, time.UTC)
	s = s.WithClock(func() time.Time { return now })

	for _, e := range []*models.Email{
		newEmail("first", "Invoice", ptr(1.0), time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)),
		newEmail("last", "Invoice", ptr(2.0), time.Date(2026, 10, 31, 23, 59, 0, 0, time.UTC)),
		newEmail("next", "Invoice", ptr(4.0), time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)),
		newEmail("previous", "Invoice", ptr(8.0), time.Date(2026, 9, 30, 23, 59, 0, 0, time.UTC)),
	} {
		_, err := s.CreateEmail(ctx, e)
		require.NoError(t, err)
	}

	metrics, err := s.GetDashboardMetrics(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, metrics.MonthlyExpenses, 0.0001)
}

func TestGetTransactionVolume(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s = s.WithClock(func() time.Time { return now })

	for _, received := range []time.Time{
		time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), // outside the window
	} {
		_, err := s.CreateEmail(ctx, newEmail("Mail", "Invoice", nil, received))
		require.NoError(t, err)
	}

	volume, err := s.GetTransactionVolume(ctx)
	require.NoError(t, err)
	assert.Equal(t, []MonthVolume{
		{Name: "Aug", Emails: 1},
		{Name: "Oct", Emails: 2},
	}, volume)
}

func TestGetContacts(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	old := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	for _, e := range []*models.Email{
		{Subject: "1", SenderName: "Acme", SenderEmail: "acme@test", Amount: ptr(10.5), ReceivedAt: old},
		{Subject: "2", SenderName: "Acme", SenderEmail: "acme@test", ReceivedAt: old.Add(time.Hour)},
		{Subject: "3", SenderName: "Bank", SenderEmail: "bank@test", Amount: ptr(2.25), ReceivedAt: recent},
	} {
		_, err := s.CreateEmail(ctx, e)
		require.NoError(t, err)
	}

	contacts, err := s.GetContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	assert.Equal(t, "bank@test", contacts[0].Email)
	assert.Equal(t, int64(1), contacts[0].EmailCount)

	acme := contacts[1]
	assert.Equal(t, ContactID("acme@test"), acme.ID)
	assert.Equal(t, "Acme", acme.Name)
	assert.Equal(t, int64(2), acme.EmailCount)
	assert.InDelta(t, 10.5, acme.TotalAmount, 0.0001)
	assert.True(t, acme.LastEmailDate.Equal(old.Add(time.Hour)))

	again, err := s.GetContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, contacts[1].ID, again[1].ID)
}

func TestCreateUser_RejectsDuplicates(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateUser(ctx, &models.User{Username: "alice", Email: "alice@test", PasswordHash: "x"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, &models.User{Username: "alice", Email: "other@test", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = s.CreateUser(ctx, &models.User{Username: "bob", Email: "alice@test", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = s.GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
