package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, session_type, ip_address, country, user_agent, started_at, ended_at, status`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var (
		s       domain.Session
		endedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.SessionType, &s.IPAddress, &s.Country,
		&s.UserAgent, &s.StartedAt, &endedAt, &s.Status)
	if err != nil {
		return domain.Session{}, err
	}
	s.EndedAt = mapNullTimePtr(endedAt)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO panel_sessions (id, user_id, session_type, ip_address, country, user_agent, started_at, ended_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.SessionType, s.IPAddress, s.Country, s.UserAgent,
		s.StartedAt, mapOptionalTime(s.EndedAt), s.Status,
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM panel_sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM panel_sessions
		 WHERE user_id = ? ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *sessionsRepo) ListActiveSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM panel_sessions
		 WHERE status = ? ORDER BY started_at DESC`, domain.SessionActive)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *sessionsRepo) TerminateSession(ctx context.Context, id string, endedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE panel_sessions SET status = ?, ended_at = ? WHERE id = ?`,
		domain.SessionTerminated, endedAt, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sessionsRepo) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM panel_sessions WHERE status = ?`, domain.SessionActive).Scan(&count)
	return count, err
}

func (r *sessionsRepo) CountStartedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM panel_sessions WHERE started_at >= ?`, since).Scan(&count)
	return count, err
}

func (r *sessionsRepo) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM panel_sessions
		WHERE status != ? AND ended_at IS NOT NULL AND ended_at < ?`,
		domain.SessionActive, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collectSessions(rows *sql.Rows) ([]domain.Session, error) {
	defer rows.Close()
	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
