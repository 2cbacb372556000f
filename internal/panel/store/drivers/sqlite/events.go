package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
)

type eventsRepo struct {
	db dbtx
}

func (r *eventsRepo) Append(ctx context.Context, e domain.SecurityEvent) error {
	details, err := marshalDetails(e.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, ts, level, source, message, details, user_id, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, e.Level, e.Source, e.Message, details,
		nullIfEmpty(e.UserID), nullIfEmpty(e.IPAddress),
	)
	return mapConstraint(err)
}

func (r *eventsRepo) List(ctx context.Context, q domain.EventQuery) ([]domain.SecurityEvent, error) {
	var (
		conds []string
		args  []any
	)
	if q.Level != "" {
		conds = append(conds, "level = ?")
		args = append(args, q.Level)
	}
	if q.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, q.Source)
	}
	if !q.Since.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, q.Since)
	}
	if !q.Until.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, q.Until)
	}
	if q.Search != "" {
		conds = append(conds, "message LIKE ?")
		args = append(args, "%"+q.Search+"%")
	}

	query := `SELECT id, ts, level, source, message, details, user_id, ip_address
		FROM security_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SecurityEvent
	for rows.Next() {
		var (
			e       domain.SecurityEvent
			details string
			userID  sql.NullString
			ip      sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Source, &e.Message, &details, &userID, &ip); err != nil {
			return nil, err
		}
		e.Details = unmarshalDetails(details)
		e.UserID = userID.String
		e.IPAddress = ip.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *eventsRepo) CountSince(ctx context.Context, level string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM security_events WHERE level = ? AND ts >= ?`,
		level, since,
	).Scan(&count)
	return count, err
}

func (r *eventsRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM security_events WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
