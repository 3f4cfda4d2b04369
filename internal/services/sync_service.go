package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ledgermail/core/internal/apperrors"
)

var (
	// ErrSyncNotConfigured indicates no sync endpoint is configured
	ErrSyncNotConfigured = errors.New("sync service is not configured")
	// ErrSyncInProgress indicates a sync for the user is already running
	ErrSyncInProgress = apperrors.Conflict("Sync already in progress", nil)
)

const (
	placeholderAccessToken = "placeholder_access_token_from_user_session"
	maxSyncResponseBytes   = 1 << 20
)

// SyncError is a failure reported by the sync endpoint
type SyncError struct {
	StatusCode int
	Message    string
}

func (e *SyncError) Error() string {
	return e.Message
}

// SyncService triggers the external mailbox sync endpoint
type SyncService struct {
	url     string
	client  *http.Client
	running sync.Map // userID -> struct{}
}

// NewSyncService creates a new SyncService instance. An empty url leaves
// the service unconfigured.
func NewSyncService(url string, timeout time.Duration) *SyncService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SyncService{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a sync endpoint is set
func (s *SyncService) Configured() bool {
	return s.url != ""
}

type syncRequest struct {
	UserID      string `json:"userId"`
	AccessToken string `json:"accessToken"`
}

// Trigger asks the sync endpoint to ingest mail for the user and returns the
// endpoint's response body
func (s *SyncService) Trigger(ctx context.Context, userID string) (map[string]interface{}, error) {
	if !s.Configured() {
		log.Println("[Sync] Sync endpoint is not configured")
		return nil, ErrSyncNotConfigured
	}

	if _, loaded := s.running.LoadOrStore(userID, struct{}{}); loaded {
		return nil, ErrSyncInProgress
	}
	defer s.running.Delete(userID)

	body, err := json.Marshal(syncRequest{
		UserID:      userID,
		AccessToken: placeholderAccessToken,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &SyncError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSyncResponseBytes))
	if err != nil {
		return nil, &SyncError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	result := map[string]interface{}{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &SyncError{
			StatusCode: resp.StatusCode,
			Message:    "Sync endpoint returned an invalid response.",
		}
	}

	success, _ := result["success"].(bool)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !success {
		message, _ := result["error"].(string)
		if message == "" {
			message = "Sync endpoint returned an error."
		}
		return nil, &SyncError{StatusCode: resp.StatusCode, Message: message}
	}

	return result, nil
}
