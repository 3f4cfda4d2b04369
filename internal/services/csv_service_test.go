package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ledgermail/core/internal/database/models"
	"github.com/ledgermail/core/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCSV_QuotesEveryField(t *testing.T) {
	amount := 1234.5
	emails := []models.EmailWithLabels{
		{
			Email: models.Email{
				Subject:     `Invoice "March", final`,
				SenderName:  "Acme, Inc.",
				SenderEmail: "billing@acme.test",
				Category:    "Invoice",
				Amount:      &amount,
				Status:      models.StatusProcessed,
				ReceivedAt:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			},
			Labels: []models.Label{{Name: "Tax"}, {Name: "Q1"}},
		},
		{
			Email: models.Email{
				Subject:     "No amount",
				SenderName:  "Bank",
				SenderEmail: "bank@test",
				Category:    models.DefaultCategory,
				Status:      models.StatusPending,
				ReceivedAt:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	lines := strings.Split(string(BuildCSV(emails)), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "Subject,Sender Name,Sender Email,Category,Amount,Status,Received Date,Labels", lines[0])
	assert.Equal(t,
		`"Invoice ""March"", final","Acme, Inc.","billing@acme.test","Invoice","1234.50","processed","2026-03-01T09:30:00.000Z","Tax; Q1"`,
		lines[1])
	assert.Equal(t,
		`"No amount","Bank","bank@test","Uncategorized","","pending","2026-03-02T00:00:00.000Z",""`,
		lines[2])
}

func TestCSVService_ExportAppliesFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, category := range []string{"Invoice", "Receipt", "Invoice"} {
		_, err := store.CreateEmail(ctx, &models.Email{
			Subject:     category + " mail",
			SenderName:  "Sender",
			SenderEmail: "sender@test",
			Category:    category,
			ReceivedAt:  time.Now(),
		})
		require.NoError(t, err)
	}

	service := NewCSVService(store)
	body, err := service.Export(ctx, storage.EmailFilter{Category: "Invoice", Limit: 1, Offset: 5})
	require.NoError(t, err)

	lines := strings.Split(string(body), "\n")
	assert.Len(t, lines, 3, "header plus both invoices; limit and offset are ignored")
}

func TestCSVService_Filename(t *testing.T) {
	service := NewCSVService(nil)
	service.now = func() time.Time { return time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC) }

	assert.Equal(t, "emails-export-2026-10-18.csv", service.Filename())
}

func TestStripMarkup(t *testing.T) {
	assert.Equal(t, "Your bill is ready", StripMarkup("<p>Your <b>bill</b> is ready</p>"))
	assert.Equal(t, "Tom & Jerry", StripMarkup("Tom & Jerry"))
	assert.Equal(t, "", StripMarkup("<script>alert(1)</script>"))
}
