// Package session holds authenticated sessions behind a pluggable Store.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound indicates the session does not exist or has expired
	ErrSessionNotFound = errors.New("session not found")
)

const (
	// DefaultTTL is the session lifetime when none is configured
	DefaultTTL = 24 * time.Hour
)

// Session is an authenticated user session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions
type Store interface {
	// Create stores a new session for the user and returns it
	Create(ctx context.Context, userID, username, email string) (*Session, error)
	// Get returns the session or ErrSessionNotFound
	Get(ctx context.Context, id string) (*Session, error)
	// Delete removes the session; deleting an unknown id is not an error
	Delete(ctx context.Context, id string) error
}

func newSession(userID, username, email string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Username:  username,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}
