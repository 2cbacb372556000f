package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
)

type rdpRepo struct {
	db dbtx
}

const rdpColumns = `id, user_id, host, port, username, password_sealed, quality,
	status, started_at, ended_at, last_error, created_at, updated_at`

func scanConnection(row interface{ Scan(...any) error }) (domain.RDPConnection, error) {
	var (
		c         domain.RDPConnection
		startedAt sql.NullTime
		endedAt   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Host, &c.Port, &c.Username,
		&c.PasswordSealed, &c.Quality, &c.Status, &startedAt, &endedAt,
		&c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.RDPConnection{}, err
	}
	c.StartedAt = mapNullTimePtr(startedAt)
	c.EndedAt = mapNullTimePtr(endedAt)
	return c, nil
}

func (r *rdpRepo) CreateConnection(ctx context.Context, c domain.RDPConnection) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rdp_connections (id, user_id, host, port, username, password_sealed,
			quality, status, started_at, ended_at, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Host, c.Port, c.Username, c.PasswordSealed,
		c.Quality, c.Status, mapOptionalTime(c.StartedAt), mapOptionalTime(c.EndedAt),
		c.LastError, c.CreatedAt, c.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *rdpRepo) GetConnectionByID(ctx context.Context, id string) (domain.RDPConnection, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+rdpColumns+` FROM rdp_connections WHERE id = ?`, id)
	c, err := scanConnection(row)
	if err != nil {
		return domain.RDPConnection{}, mapNotFound(err)
	}
	return c, nil
}

func (r *rdpRepo) ListConnectionsByUser(ctx context.Context, userID string) ([]domain.RDPConnection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+rdpColumns+` FROM rdp_connections
		 WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RDPConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *rdpRepo) UpdateConnectionStatus(ctx context.Context, id, status, lastError string, startedAt, endedAt *time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE rdp_connections
		SET status = ?,
		    last_error = ?,
		    started_at = COALESCE(?, started_at),
		    ended_at = COALESCE(?, ended_at),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, lastError, mapOptionalTime(startedAt), mapOptionalTime(endedAt), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *rdpRepo) DeleteConnection(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rdp_connections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
