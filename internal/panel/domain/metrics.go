package domain

import "time"

// MetricSnapshot is one sampled view of the host, stored on an interval by
// the system monitor.
type MetricSnapshot struct {
	ID        string
	Timestamp time.Time

	CPUPercent float64

	MemoryTotalMB int64
	MemoryUsedMB  int64

	DiskTotalGB int64
	DiskUsedGB  int64

	NetworkSentGB     float64
	NetworkReceivedGB float64

	ActiveConnections int
}

// DashboardStats aggregates the freshest snapshot with session counts for
// the panel landing page.
type DashboardStats struct {
	ActiveSessions        int     `json:"active_sessions"`
	ConnectionsToday      int     `json:"total_connections_today"`
	CPUPercent            float64 `json:"cpu_usage_percent"`
	MemoryPercent         float64 `json:"memory_usage_percent"`
	DiskPercent           float64 `json:"disk_usage_percent"`
	SecurityAlertsLast24h int     `json:"security_alerts"`
}
