package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/whisper/internal/chat/store"
)

// HousekeepingService periodically cleans up stale database records so
// expired login codes and soft-deleted messages don't accumulate forever.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// DeletedRetention is how long soft-deleted messages are kept before
	// they are purged for good.
	DeletedRetention time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given
// interval. If interval is 0 or negative, defaults to 1 hour. Soft-deleted
// messages are retained for 30 days unless configured otherwise.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:            store,
		Logger:           logger,
		Interval:         interval,
		DeletedRetention: 30 * 24 * time.Hour,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual deletion of stale records.
// Each step is independent - failures in one won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	now := time.Now()
	s.Logger.Info("starting housekeeping cleanup")

	if err := s.Store.Users().PurgeExpiredOTPs(ctx, now); err != nil {
		s.Logger.Error("failed to purge expired login codes", "error", err)
	} else {
		s.Logger.Debug("purged expired login codes")
	}

	if err := s.Store.Messages().PurgeDeletedMessages(ctx, now.Add(-s.DeletedRetention)); err != nil {
		s.Logger.Error("failed to purge deleted messages", "error", err)
	} else {
		s.Logger.Debug("purged deleted messages")
	}

	s.Logger.Info("housekeeping cleanup completed")
}
