package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/internal/panel/store/drivers/sqlite"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/idx"
	"github.com/harwood-dev/deskgate/pkg/jwtx"
	"github.com/harwood-dev/deskgate/pkg/totpx"
	"github.com/stretchr/testify/require"
)

type loginFixture struct {
	store  *sqlite.Store
	login  *LoginService
	hasher *cryptox.Hasher
	clock  *time.Time
}

func newLoginFixture(t *testing.T) *loginFixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := cryptox.NewHasher("test-pepper")
	issuer, err := jwtx.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), "deskgate-test")
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	audit := &AuditService{Store: s, Logger: logger}

	login := &LoginService{
		Store:    s,
		Hasher:   hasher,
		Tokens:   issuer,
		TokenTTL: time.Hour,
		Policy:   DefaultLockoutPolicy(),
		Audit:    audit,
		Sessions: &SessionService{Store: s, Audit: audit},
		Now:      func() time.Time { return now },
	}

	return &loginFixture{store: s, login: login, hasher: hasher, clock: &now}
}

func (f *loginFixture) createUser(t *testing.T, username, password string, mutate func(*domain.User)) domain.User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)

	now := *f.clock
	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if mutate != nil {
		mutate(&u)
	}
	require.NoError(t, f.store.Users().CreateUser(context.Background(), u))
	return u
}

func TestLoginSuccess(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()
	f.createUser(t, "alice", "correct horse battery", nil)

	grant, user, err := f.login.Login(ctx, LoginInput{
		Username:  "alice",
		Password:  "correct horse battery",
		IPAddress: "192.168.1.10",
	})
	require.NoError(t, err)
	require.Equal(t, "bearer", grant.TokenType)
	require.Equal(t, time.Hour, grant.ExpiresIn)
	require.Equal(t, "alice", user.Username)

	claims, err := f.login.Tokens.Verify(grant.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, domain.RoleUser, claims.Role)

	stored, err := f.store.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)

	// A web panel session is opened as part of the login.
	sessions, err := f.store.Sessions().ListSessionsByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, domain.SessionActive, sessions[0].Status)
	require.Equal(t, "192.168.1.10", sessions[0].IPAddress)
}

func TestLoginUnknownUser(t *testing.T) {
	f := newLoginFixture(t)

	_, _, err := f.login.Login(context.Background(), LoginInput{
		Username: "nobody",
		Password: "whatever",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "bob", "right-password", nil)

	// The failing attempts themselves report invalid credentials; the lock
	// only answers the next attempt.
	for i := 0; i < 5; i++ {
		_, _, err := f.login.Login(ctx, LoginInput{Username: "bob", Password: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	stored, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 5, stored.FailedLoginAttempts)
	require.NotNil(t, stored.LockedUntil)

	// Correct password during the lock window is rejected as locked and
	// must not touch the counter.
	_, _, err = f.login.Login(ctx, LoginInput{Username: "bob", Password: "right-password"})
	require.ErrorIs(t, err, ErrAccountLocked)

	after, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 5, after.FailedLoginAttempts)
	require.Equal(t, stored.LockedUntil.Unix(), after.LockedUntil.Unix())
}

func TestLoginAfterLockExpiry(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()
	u := f.createUser(t, "carol", "right-password", nil)

	for i := 0; i < 5; i++ {
		_, _, err := f.login.Login(ctx, LoginInput{Username: "carol", Password: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Jump past the lock window; the stale lock is cleared lazily by the
	// next successful login.
	*f.clock = f.clock.Add(31 * time.Minute)

	_, _, err := f.login.Login(ctx, LoginInput{Username: "carol", Password: "right-password"})
	require.NoError(t, err)

	stored, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, stored.FailedLoginAttempts)
	require.Nil(t, stored.LockedUntil)
}

func TestLoginTOTPGate(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	u := f.createUser(t, "dave", "right-password", func(u *domain.User) {
		u.TOTPSecret = &secret
		u.TOTPEnabled = true
	})

	// Valid password without a code is a flow-control signal, not a
	// credential failure.
	_, _, err := f.login.Login(ctx, LoginInput{Username: "dave", Password: "right-password"})
	require.ErrorIs(t, err, ErrTOTPRequired)

	// A wrong code is reported like any bad credential but does not
	// advance the lockout counter.
	_, _, err = f.login.Login(ctx, LoginInput{
		Username: "dave", Password: "right-password", TOTPCode: "000000",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	stored, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Zero(t, stored.FailedLoginAttempts)

	code, err := totpx.CodeAt(secret, *f.clock)
	require.NoError(t, err)

	grant, _, err := f.login.Login(ctx, LoginInput{
		Username: "dave", Password: "right-password", TOTPCode: code,
	})
	require.NoError(t, err)
	require.NotEmpty(t, grant.AccessToken)
}

func TestLoginWrongPasswordSkipsTOTP(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()

	secret := "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"
	u := f.createUser(t, "erin", "right-password", func(u *domain.User) {
		u.TOTPSecret = &secret
		u.TOTPEnabled = true
	})

	// Password is checked before the TOTP gate, so a wrong password never
	// reveals whether 2FA is enabled — and it does count as a failure.
	_, _, err := f.login.Login(ctx, LoginInput{Username: "erin", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	stored, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.FailedLoginAttempts)
}

func TestLoginIPAllowlist(t *testing.T) {
	f := newLoginFixture(t)
	ctx := context.Background()
	f.createUser(t, "frank", "right-password", func(u *domain.User) {
		u.AllowedIPs = []string{"10.0.0.5"}
	})

	_, _, err := f.login.Login(ctx, LoginInput{
		Username: "frank", Password: "right-password", IPAddress: "10.0.0.9",
	})
	require.ErrorIs(t, err, ErrIPForbidden)

	// The rejection leaves an audit trail.
	events, err := f.store.Events().List(ctx, domain.EventQuery{Source: domain.SourceAuth})
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.Message == "login from disallowed ip" && e.IPAddress == "10.0.0.9" {
			found = true
		}
	}
	require.True(t, found, "expected a disallowed-ip security event")

	_, _, err = f.login.Login(ctx, LoginInput{
		Username: "frank", Password: "right-password", IPAddress: "10.0.0.5",
	})
	require.NoError(t, err)
}

func TestLoginStoreErrorIsSurfaced(t *testing.T) {
	f := newLoginFixture(t)
	f.createUser(t, "gina", "right-password", nil)

	// Closing the store makes every lookup fail; the attempt must surface
	// the failure instead of silently retrying.
	require.NoError(t, f.store.Close())

	_, _, err := f.login.Login(context.Background(), LoginInput{
		Username: "gina", Password: "right-password",
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
	require.NotErrorIs(t, err, store.ErrNotFound)
}
