package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
)

type metricsRepo struct {
	db dbtx
}

const metricColumns = `id, ts, cpu_percent, memory_total_mb, memory_used_mb,
	disk_total_gb, disk_used_gb, network_sent_gb, network_received_gb, active_connections`

func scanSnapshot(row interface{ Scan(...any) error }) (domain.MetricSnapshot, error) {
	var m domain.MetricSnapshot
	err := row.Scan(&m.ID, &m.Timestamp, &m.CPUPercent,
		&m.MemoryTotalMB, &m.MemoryUsedMB, &m.DiskTotalGB, &m.DiskUsedGB,
		&m.NetworkSentGB, &m.NetworkReceivedGB, &m.ActiveConnections)
	if err != nil {
		return domain.MetricSnapshot{}, err
	}
	return m, nil
}

func (r *metricsRepo) InsertSnapshot(ctx context.Context, m domain.MetricSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO system_metrics (id, ts, cpu_percent, memory_total_mb, memory_used_mb,
			disk_total_gb, disk_used_gb, network_sent_gb, network_received_gb, active_connections)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Timestamp, m.CPUPercent, m.MemoryTotalMB, m.MemoryUsedMB,
		m.DiskTotalGB, m.DiskUsedGB, m.NetworkSentGB, m.NetworkReceivedGB,
		m.ActiveConnections,
	)
	return mapConstraint(err)
}

func (r *metricsRepo) LatestSnapshot(ctx context.Context) (domain.MetricSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM system_metrics ORDER BY ts DESC LIMIT 1`)
	m, err := scanSnapshot(row)
	if err != nil {
		return domain.MetricSnapshot{}, mapNotFound(err)
	}
	return m, nil
}

func (r *metricsRepo) ListSnapshotsSince(ctx context.Context, since time.Time) ([]domain.MetricSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+metricColumns+` FROM system_metrics WHERE ts >= ? ORDER BY ts ASC`, since)
	if err != nil {
		return nil, err
	}
	return collectSnapshots(rows)
}

func (r *metricsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM system_metrics WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectSnapshots(rows *sql.Rows) ([]domain.MetricSnapshot, error) {
	defer rows.Close()
	var out []domain.MetricSnapshot
	for rows.Next() {
		m, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
