package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/idx"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
)

const (
	mib = 1024 * 1024
	gib = 1024 * 1024 * 1024
)

// MonitorService samples host metrics on an interval and persists the
// snapshots for the dashboard.
type MonitorService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// DiskPath is the mount point sampled for disk usage.
	DiskPath string

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewMonitorService creates a monitor sampling every interval. If interval
// is 0 or negative, defaults to 30 seconds.
func NewMonitorService(store store.Store, logger *slog.Logger, interval time.Duration) *MonitorService {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &MonitorService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		DiskPath: "/",
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sampler. Non-blocking; call Stop() to shut
// down gracefully.
func (s *MonitorService) Start() {
	go s.run()
	s.Logger.Info("system monitor started", "interval", s.Interval)
}

// Stop shuts down the sampler, blocking until the current sample finishes.
func (s *MonitorService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("system monitor stopped")
}

func (s *MonitorService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.sampleOnce()

	for {
		select {
		case <-ticker.C:
			s.sampleOnce()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MonitorService) sampleOnce() {
	ctx := context.Background()

	snapshot, err := s.Sample(ctx)
	if err != nil {
		s.Logger.Error("failed to sample system metrics", "error", err)
		return
	}

	if err := s.Store.Metrics().InsertSnapshot(ctx, snapshot); err != nil {
		s.Logger.Error("failed to persist metric snapshot", "error", err)
	}
}

// Sample collects one snapshot from the host. Individual probe failures
// zero the affected fields rather than failing the whole sample; only CPU
// failure is fatal because an all-zero snapshot is worse than none.
func (s *MonitorService) Sample(ctx context.Context) (domain.MetricSnapshot, error) {
	snapshot := domain.MetricSnapshot{
		ID:        idx.New().String(),
		Timestamp: time.Now().UTC(),
	}

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return domain.MetricSnapshot{}, err
	}
	if len(cpuPercents) > 0 {
		snapshot.CPUPercent = cpuPercents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.Logger.Debug("memory probe failed", "error", err)
	} else {
		snapshot.MemoryTotalMB = int64(vm.Total / mib)
		snapshot.MemoryUsedMB = int64(vm.Used / mib)
	}

	if du, err := disk.UsageWithContext(ctx, s.DiskPath); err != nil {
		s.Logger.Debug("disk probe failed", "error", err, "path", s.DiskPath)
	} else {
		snapshot.DiskTotalGB = int64(du.Total / gib)
		snapshot.DiskUsedGB = int64(du.Used / gib)
	}

	if counters, err := gopsnet.IOCountersWithContext(ctx, false); err != nil {
		s.Logger.Debug("network probe failed", "error", err)
	} else if len(counters) > 0 {
		snapshot.NetworkSentGB = float64(counters[0].BytesSent) / gib
		snapshot.NetworkReceivedGB = float64(counters[0].BytesRecv) / gib
	}

	if conns, err := gopsnet.ConnectionsWithContext(ctx, "tcp"); err != nil {
		s.Logger.Debug("connection probe failed", "error", err)
	} else {
		for _, c := range conns {
			if c.Status == "ESTABLISHED" {
				snapshot.ActiveConnections++
			}
		}
	}

	return snapshot, nil
}

// History returns the stored snapshots from since onward, oldest first, for
// the dashboard charts.
func (s *MonitorService) History(ctx context.Context, since time.Time) ([]domain.MetricSnapshot, error) {
	return s.Store.Metrics().ListSnapshotsSince(ctx, since)
}

// DashboardStats merges the freshest snapshot with session and alert counts
// for the panel landing page.
func (s *MonitorService) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats

	snapshot, err := s.Store.Metrics().LatestSnapshot(ctx)
	if err == nil {
		stats.CPUPercent = snapshot.CPUPercent
		stats.MemoryPercent = percent(snapshot.MemoryUsedMB, snapshot.MemoryTotalMB)
		stats.DiskPercent = percent(snapshot.DiskUsedGB, snapshot.DiskTotalGB)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.DashboardStats{}, err
	}

	active, err := s.Store.Sessions().CountActive(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.ActiveSessions = active

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := s.Store.Sessions().CountStartedSince(ctx, midnight)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.ConnectionsToday = today

	alerts, err := s.Store.Events().CountSince(ctx, domain.LevelWarning, now.Add(-24*time.Hour))
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.SecurityAlertsLast24h = alerts

	return stats, nil
}

func percent(used, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}
