package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, username, email, password_hash, role, totp_secret, totp_enabled,
	allowed_ips, failed_login_attempts, locked_until, last_login, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u           domain.User
		totpSecret  sql.NullString
		allowedIPs  string
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&totpSecret, &u.TOTPEnabled, &allowedIPs, &u.FailedLoginAttempts,
		&lockedUntil, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.TOTPSecret = mapNullStringPtr(totpSecret)
	u.AllowedIPs = splitList(allowedIPs)
	u.LockedUntil = mapNullTimePtr(lockedUntil)
	u.LastLogin = mapNullTimePtr(lastLogin)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, role, totp_secret, totp_enabled,
			allowed_ips, failed_login_attempts, locked_until, last_login,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role,
		mapOptionalString(u.TOTPSecret), u.TOTPEnabled, joinList(u.AllowedIPs),
		u.FailedLoginAttempts, mapOptionalTime(u.LockedUntil),
		mapOptionalTime(u.LastLogin), u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

// RecordLoginFailure bumps the counter and sets the lock in a single
// conditional UPDATE so concurrent failures serialize in the database
// rather than racing read-modify-write in the app.
func (r *usersRepo) RecordLoginFailure(ctx context.Context, userID string, maxFailed int, lockFor time.Duration, now time.Time) (store.LoginFailure, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= ? THEN ?
		        ELSE locked_until
		    END,
		    updated_at = ?
		WHERE id = ?
		RETURNING failed_login_attempts, locked_until`,
		maxFailed, now.Add(lockFor), now, userID,
	)

	var (
		out         store.LoginFailure
		lockedUntil sql.NullTime
	)
	if err := row.Scan(&out.FailedLoginAttempts, &lockedUntil); err != nil {
		return store.LoginFailure{}, mapNotFound(err)
	}
	out.LockedUntil = mapNullTimePtr(lockedUntil)
	return out, nil
}

func (r *usersRepo) RecordLoginSuccess(ctx context.Context, userID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login = ?,
		    updated_at = ?
		WHERE id = ?`,
		now, now, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) SetPendingTOTPSecret(ctx context.Context, userID string, secret string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET totp_secret = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		secret, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) EnableTOTP(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET totp_enabled = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND totp_secret IS NOT NULL`,
		userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) DisableTOTP(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET totp_enabled = 0, totp_secret = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
