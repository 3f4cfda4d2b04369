package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"time"

	"github.com/ledgermail/core/internal/apperrors"
	"github.com/ledgermail/core/internal/database/models"
)

var _ Storage = (*GormStorage)(nil)

// monthBounds returns the first instant of the month containing t and the
// first instant of the following month, in t's location.
func monthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// GetDashboardMetrics computes the dashboard headline numbers
func (s *GormStorage) GetDashboardMetrics(ctx context.Context) (*DashboardMetrics, error) {
	db := s.db.WithContext(ctx)
	metrics := &DashboardMetrics{}

	if err := db.Model(&models.Email{}).Count(&metrics.TotalEmails).Error; err != nil {
		return nil, apperrors.Storage("failed to count emails", err)
	}

	if err := db.Model(&models.Email{}).
		Where("category = ?", models.DefaultCategory).
		Count(&metrics.UncategorizedEmails).Error; err != nil {
		return nil, apperrors.Storage("failed to count uncategorized emails", err)
	}

	if err := db.Model(&models.Attachment{}).Count(&metrics.TotalDocuments).Error; err != nil {
		return nil, apperrors.Storage("failed to count attachments", err)
	}

	start, end := monthBounds(s.now())
	var monthly struct {
		Total float64
	}
	if err := db.Model(&models.Email{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("received_at >= ? AND received_at < ?", start.UTC(), end.UTC()).
		Scan(&monthly).Error; err != nil {
		return nil, apperrors.Storage("failed to sum monthly expenses", err)
	}
	metrics.MonthlyExpenses = RoundAmount(monthly.Total)

	return metrics, nil
}

// GetExpensesByCategory returns the five categories with the largest summed
// amount, largest first. Emails without an amount are ignored.
func (s *GormStorage) GetExpensesByCategory(ctx context.Context) ([]CategoryExpense, error) {
	rows := []CategoryExpense{}
	if err := s.db.WithContext(ctx).Model(&models.Email{}).
		Select("category AS name, SUM(amount) AS amount").
		Where("amount IS NOT NULL").
		Group("category").
		Order("SUM(amount) DESC").
		Order("category ASC").
		Limit(topCategoryCount).
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Storage("failed to aggregate expenses", err)
	}

	for i := range rows {
		rows[i].Amount = RoundAmount(rows[i].Amount)
	}
	return rows, nil
}

// GetTransactionVolume counts emails per calendar month over the trailing
// six months, oldest month first.
func (s *GormStorage) GetTransactionVolume(ctx context.Context) ([]MonthVolume, error) {
	now := s.now()
	since := now.AddDate(0, -volumeMonths, 0)

	var received []time.Time
	if err := s.db.WithContext(ctx).Model(&models.Email{}).
		Where("received_at > ?", since.UTC()).
		Pluck("received_at", &received).Error; err != nil {
		return nil, apperrors.Storage("failed to aggregate transaction volume", err)
	}

	type bucket struct {
		month time.Time
		count int64
	}
	buckets := map[time.Time]*bucket{}
	for _, t := range received {
		month, _ := monthBounds(t.In(now.Location()))
		b, ok := buckets[month]
		if !ok {
			b = &bucket{month: month}
			buckets[month] = b
		}
		b.count++
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].month.Before(ordered[j].month)
	})

	volume := make([]MonthVolume, 0, len(ordered))
	for _, b := range ordered {
		volume = append(volume, MonthVolume{
			Name:   b.month.Format("Jan"),
			Emails: b.count,
		})
	}
	return volume, nil
}

// ContactID derives the stable synthetic id of a sender
func ContactID(senderEmail string) string {
	sum := md5.Sum([]byte(senderEmail))
	return hex.EncodeToString(sum[:])
}

// GetContacts rolls emails up per (sender name, sender email) pair, most
// recently active sender first.
func (s *GormStorage) GetContacts(ctx context.Context) ([]Contact, error) {
	var rows []struct {
		SenderName  string
		SenderEmail string
		Amount      *float64
		ReceivedAt  time.Time
	}
	if err := s.db.WithContext(ctx).Model(&models.Email{}).
		Select("sender_name, sender_email, amount, received_at").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Storage("failed to aggregate contacts", err)
	}

	type key struct{ name, email string }
	byKey := map[key]*Contact{}
	for _, r := range rows {
		k := key{r.SenderName, r.SenderEmail}
		c, ok := byKey[k]
		if !ok {
			c = &Contact{
				ID:    ContactID(r.SenderEmail),
				Name:  r.SenderName,
				Email: r.SenderEmail,
			}
			byKey[k] = c
		}
		c.EmailCount++
		if r.Amount != nil {
			c.TotalAmount += *r.Amount
		}
		if r.ReceivedAt.After(c.LastEmailDate) {
			c.LastEmailDate = r.ReceivedAt
		}
	}

	contacts := make([]Contact, 0, len(byKey))
	for _, c := range byKey {
		c.TotalAmount = RoundAmount(c.TotalAmount)
		contacts = append(contacts, *c)
	}
	sort.Slice(contacts, func(i, j int) bool {
		if !contacts[i].LastEmailDate.Equal(contacts[j].LastEmailDate) {
			return contacts[i].LastEmailDate.After(contacts[j].LastEmailDate)
		}
		if contacts[i].Email != contacts[j].Email {
			return contacts[i].Email < contacts[j].Email
		}
		return contacts[i].Name < contacts[j].Name
	})
	return contacts, nil
}
