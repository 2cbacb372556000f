package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/store"
)

// HousekeepingService periodically prunes old security events, metric
// snapshots and ended sessions so the database does not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Settings *SettingsService
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, settings *SettingsService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Settings: settings,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
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

// cleanup prunes by the retention window from settings. Each deletion is
// independent - failures in one won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		s.Logger.Error("failed to load settings for housekeeping", "error", err)
		return
	}

	retentionDays := settings.System.LogRetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	var total int64

	if n, err := s.Store.Events().DeleteOlderThan(ctx, cutoff); err != nil {
		s.Logger.Error("failed to prune security events", "error", err)
	} else {
		total += n
	}

	if n, err := s.Store.Metrics().DeleteOlderThan(ctx, cutoff); err != nil {
		s.Logger.Error("failed to prune metric snapshots", "error", err)
	} else {
		total += n
	}

	if n, err := s.Store.Sessions().DeleteEndedBefore(ctx, cutoff); err != nil {
		s.Logger.Error("failed to prune ended sessions", "error", err)
	} else {
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted_rows", total, "cutoff", cutoff)
}
