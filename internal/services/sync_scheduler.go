package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ledgermail/core/internal/storage"
)

// SyncScheduler periodically triggers a mailbox sync for every user
type SyncScheduler struct {
	store       storage.Storage
	syncService *SyncService
	logService  *LogService
	interval    time.Duration
	stopChan    chan struct{}
	running     bool
	mu          sync.Mutex
	syncing     sync.Mutex // prevents overlapping cycles
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(store storage.Storage, syncService *SyncService, logService *LogService, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		store:       store,
		syncService: syncService,
		logService:  logService,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the periodic sync loop
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[SyncScheduler] Starting with interval: %v", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stopChan:
				log.Println("[SyncScheduler] Stopping")
				return
			}
		}
	}()
}

// Stop stops the periodic sync loop
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopChan)
	s.running = false
}

// RunOnce triggers a sync for every user and returns how many succeeded.
// A cycle that starts while the previous one is still running is skipped.
func (s *SyncScheduler) RunOnce(ctx context.Context) int {
	if !s.syncing.TryLock() {
		log.Println("[SyncScheduler] Previous sync still running, skipping this cycle")
		return 0
	}
	defer s.syncing.Unlock()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		log.Printf("[SyncScheduler] Failed to list users: %v", err)
		return 0
	}

	synced := 0
	for _, u := range users {
		_, err := s.syncService.Trigger(ctx, u.ID)
		switch {
		case err == nil:
			synced++
		case errors.Is(err, ErrSyncInProgress):
			log.Printf("[SyncScheduler] User %s is already syncing, skipping", u.Username)
			continue
		case errors.Is(err, ErrSyncNotConfigured):
			return synced
		default:
			log.Printf("[SyncScheduler] Sync failed for user %s: %v", u.Username, err)
		}
		if s.logService != nil {
			s.logService.LogSync(u.ID, err)
		}
	}

	log.Printf("[SyncScheduler] Sync cycle completed: %d/%d users", synced, len(users))
	return synced
}
