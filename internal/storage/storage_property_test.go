package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/ledgermail/core/internal/database"
	"github.com/ledgermail/core/internal/database/models"
)

var (
	subjectWords = []string{"Invoice", "receipt", "Payment", "statement", "REFUND", "order"}
	categories   = []string{"Invoice", "Receipt", "Utilities", models.DefaultCategory}
)

// seedEmail describes one generated email
type seedEmail struct {
	Word     int
	Category int
	HoursAgo int
}

func genSeedEmail() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, len(subjectWords)-1),
		gen.IntRange(0, len(categories)-1),
		gen.IntRange(0, 24*90),
	).Map(func(vals []interface{}) seedEmail {
		return seedEmail{
			Word:     vals[0].(int),
			Category: vals[1].(int),
			HoursAgo: vals[2].(int),
		}
	})
}

// openPropertyStorage opens a fresh database for one property run
func openPropertyStorage() (*GormStorage, func(), error) {
	tempDir, err := os.MkdirTemp("", "ledgermail_storage_prop_*")
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Initialize(filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, nil, err
	}
	cleanup := func() {
		database.Close(db)
		os.RemoveAll(tempDir)
	}
	return NewGormStorage(db), cleanup, nil
}

func seed(ctx context.Context, s *GormStorage, base time.Time, seeds []seedEmail) ([]*models.Email, error) {
	created := make([]*models.Email, 0, len(seeds))
	for i, sd := range seeds {
		email, err := s.CreateEmail(ctx, &models.Email{
			Subject:     subjectWords[sd.Word] + " #" + string(rune('a'+i%26)),
			SenderName:  "Sender",
			SenderEmail: "sender@example.com",
			Category:    categories[sd.Category],
			ReceivedAt:  base.Add(-time.Duration(sd.HoursAgo) * time.Hour),
		})
		if err != nil {
			return nil, err
		}
		created = append(created, email)
	}
	return created, nil
}

func matches(e *models.Email, f EmailFilter) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Subject), strings.ToLower(f.Search)) {
		return false
	}
	if f.Category != "" && f.Category != models.AllCategories && e.Category != f.Category {
		return false
	}
	if f.DateFrom != nil && e.ReceivedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && e.ReceivedAt.After(*f.DateTo) {
		return false
	}
	return true
}

// Property: every listed email satisfies all supplied predicates, and every
// stored email satisfying them is listed.
func TestProperty_ListEmailsFiltersAreConjunctive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	properties.Property("filters_are_conjunctive", prop.ForAll(
		func(seeds []seedEmail, searchIdx, categoryIdx, fromHours, toHours int) bool {
			s, cleanup, err := openPropertyStorage()
			if err != nil {
				return false
			}
			defer cleanup()
			ctx := context.Background()

			created, err := seed(ctx, s, base, seeds)
			if err != nil {
				return false
			}

			filter := EmailFilter{Limit: 1000}
			// index -1 means "filter not supplied"
			if searchIdx >= 0 {
				filter.Search = strings.ToLower(subjectWords[searchIdx])
			}
			if categoryIdx == len(categories) {
				filter.Category = models.AllCategories
			} else if categoryIdx >= 0 {
				filter.Category = categories[categoryIdx]
			}
			if fromHours >= 0 {
				from := base.Add(-time.Duration(fromHours) * time.Hour)
				filter.DateFrom = &from
			}
			if toHours >= 0 {
				to := base.Add(-time.Duration(toHours) * time.Hour)
				filter.DateTo = &to
			}

			listed, err := s.ListEmails(ctx, filter)
			if err != nil {
				return false
			}

			expected := 0
			for _, e := range created {
				if matches(e, filter) {
					expected++
				}
			}
			if len(listed) != expected {
				return false
			}
			for i := range listed {
				if !matches(&listed[i].Email, filter) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(12, genSeedEmail()),
		gen.IntRange(-1, len(subjectWords)-1),
		gen.IntRange(-1, len(categories)),
		gen.IntRange(-1, 24*90),
		gen.IntRange(-1, 24*30),
	))

	properties.TestingRun(t)
}

// Property: an unfiltered listing with a large enough limit returns every
// email exactly once, most recently received first.
func TestProperty_ListEmailsReturnsAllOrderedByReceivedAt(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	properties.Property("all_emails_once_desc", prop.ForAll(
		func(seeds []seedEmail) bool {
			s, cleanup, err := openPropertyStorage()
			if err != nil {
				return false
			}
			defer cleanup()
			ctx := context.Background()

			created, err := seed(ctx, s, base, seeds)
			if err != nil {
				return false
			}

			listed, err := s.ListEmails(ctx, EmailFilter{Limit: len(created) + 1})
			if err != nil {
				return false
			}
			if len(listed) != len(created) {
				return false
			}

			seen := map[string]bool{}
			for i, e := range listed {
				if seen[e.ID] {
					return false
				}
				seen[e.ID] = true
				if i > 0 && e.ReceivedAt.After(listed[i-1].ReceivedAt) {
					return false
				}
			}
			for _, e := range created {
				if !seen[e.ID] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(15, genSeedEmail()),
	))

	properties.TestingRun(t)
}

// Property: category expenses are capped at five groups, strictly descending.
func TestProperty_ExpensesByCategoryTopFiveDescending(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("top_five_descending", prop.ForAll(
		func(amounts []int) bool {
			s, cleanup, err := openPropertyStorage()
			if err != nil {
				return false
			}
			defer cleanup()
			ctx := context.Background()

			for i, cents := range amounts {
				amount := float64(cents) / 100
				// category i gets a single email, so sums differ unless amounts collide
				if _, err := s.CreateEmail(ctx, &models.Email{
					Subject:     "Invoice",
					SenderName:  "Sender",
					SenderEmail: "sender@example.com",
					Category:    "Category " + string(rune('A'+i)),
					Amount:      &amount,
					ReceivedAt:  time.Now(),
				}); err != nil {
					return false
				}
			}

			rows, err := s.GetExpensesByCategory(ctx)
			if err != nil {
				return false
			}
			if len(rows) > 5 {
				return false
			}
			for i := 1; i < len(rows); i++ {
				if rows[i].Amount > rows[i-1].Amount {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(0, 1000000)),
	))

	properties.TestingRun(t)
}
