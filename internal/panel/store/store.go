package store

import (
	"context"
	"errors"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Users() Users
	Events() Events
	Sessions() Sessions
	Metrics() Metrics
	RDPConnections() RDPConnections
	Settings() Settings

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back if fn errors
	// and committing otherwise. Prefer this over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// LoginFailure is the post-image of an atomic failure recording.
type LoginFailure struct {
	FailedLoginAttempts int
	LockedUntil         *time.Time
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername drives the login flow. Lookup is case-sensitive.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	// Duplicate usernames or emails yield ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// RecordLoginFailure increments the failure counter and, when the new
	// counter reaches maxFailed, sets locked_until = now + lockFor — all in
	// one statement so concurrent failures cannot lose updates or both
	// decide "not yet locked" past the threshold.
	RecordLoginFailure(ctx context.Context, userID string, maxFailed int, lockFor time.Duration, now time.Time) (LoginFailure, error)

	// RecordLoginSuccess resets the failure counter, clears the lock and
	// stamps last_login.
	RecordLoginSuccess(ctx context.Context, userID string, now time.Time) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// SetPendingTOTPSecret stores a secret without enabling 2FA.
	SetPendingTOTPSecret(ctx context.Context, userID string, secret string) error

	// EnableTOTP flips totp_enabled. Fails with ErrNotFound if the user has
	// no pending secret.
	EnableTOTP(ctx context.Context, userID string) error

	// DisableTOTP clears both the flag and the secret.
	DisableTOTP(ctx context.Context, userID string) error

	// IsEmpty reports whether any users exist (bootstrap check).
	IsEmpty(ctx context.Context) (bool, error)
}

// Events is the audit sink: append-only, no read-modify-write.
type Events interface {
	Append(ctx context.Context, e domain.SecurityEvent) error

	// List serves the operator-facing logs endpoint.
	List(ctx context.Context, q domain.EventQuery) ([]domain.SecurityEvent, error)

	// CountSince supports the dashboard alert counter.
	CountSince(ctx context.Context, level string, since time.Time) (int, error)

	// DeleteOlderThan is retention housekeeping.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)
	ListSessionsByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	ListActiveSessions(ctx context.Context) ([]domain.Session, error)

	// TerminateSession flips status and stamps ended_at.
	TerminateSession(ctx context.Context, id string, endedAt time.Time) error

	CountActive(ctx context.Context) (int, error)
	CountStartedSince(ctx context.Context, since time.Time) (int, error)

	// DeleteEndedBefore is retention housekeeping for non-active sessions.
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Metrics interface {
	InsertSnapshot(ctx context.Context, m domain.MetricSnapshot) error
	LatestSnapshot(ctx context.Context) (domain.MetricSnapshot, error)
	ListSnapshotsSince(ctx context.Context, since time.Time) ([]domain.MetricSnapshot, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RDPConnections interface {
	CreateConnection(ctx context.Context, c domain.RDPConnection) error
	GetConnectionByID(ctx context.Context, id string) (domain.RDPConnection, error)
	ListConnectionsByUser(ctx context.Context, userID string) ([]domain.RDPConnection, error)

	// UpdateConnectionStatus records a state transition with optional
	// started/ended stamps and error message.
	UpdateConnectionStatus(ctx context.Context, id, status, lastError string, startedAt, endedAt *time.Time) error

	DeleteConnection(ctx context.Context, id string) error
}

type Settings interface {
	// GetSettings returns ErrNotFound until the document is first written.
	GetSettings(ctx context.Context) (domain.AppSettings, error)

	// PutSettings upserts the whole settings document.
	PutSettings(ctx context.Context, s domain.AppSettings) error
}
