package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/jwtx"
	"github.com/harwood-dev/deskgate/pkg/totpx"
)

var (
	// ErrInvalidCredentials covers unknown username, wrong password and wrong
	// TOTP code alike, so responses never reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked means the lockout window still covers now.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrTOTPRequired signals the client to re-submit with a TOTP code. The
	// password has already been verified at this point.
	ErrTOTPRequired = errors.New("totp code required")

	// ErrTOTPSetupMissing means policy requires a second factor the user has
	// not enrolled yet.
	ErrTOTPSetupMissing = errors.New("totp enrollment required")

	// ErrIPForbidden means the source address is outside the user's allowlist.
	ErrIPForbidden = errors.New("ip address not allowed")
)

// LoginInput carries everything one authentication attempt needs.
type LoginInput struct {
	Username  string
	Password  string
	TOTPCode  string
	IPAddress string
	UserAgent string
}

// LoginService runs the full authentication flow: user lookup, lockout
// check, password verification, TOTP gate, IP allowlist, then token issue
// and session bookkeeping.
type LoginService struct {
	Store    store.Store
	Hasher   *cryptox.Hasher
	Tokens   *jwtx.Issuer
	TokenTTL time.Duration
	Policy   LockoutPolicy
	Audit    *AuditService
	Sessions *SessionService

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Login authenticates one attempt. The checks run in a fixed order so a
// locked account never leaks password validity and a wrong TOTP code never
// advances the lockout counter.
func (s *LoginService) Login(ctx context.Context, in LoginInput) (domain.TokenGrant, domain.User, error) {
	now := s.now()

	user, err := s.Store.Users().GetUserByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
				"login attempt for unknown user",
				map[string]any{"username": in.Username}, "", in.IPAddress)
			return domain.TokenGrant{}, domain.User{}, ErrInvalidCredentials
		}
		return domain.TokenGrant{}, domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	// Lock check comes before password verification: a correct password
	// against a locked account must neither reset nor advance the counter.
	if user.Locked(now) {
		s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
			"login attempt on locked account",
			map[string]any{"username": user.Username, "locked_until": user.LockedUntil},
			user.ID, in.IPAddress)
		return domain.TokenGrant{}, domain.User{}, ErrAccountLocked
	}

	if !s.Hasher.Verify(in.Password, user.PasswordHash) {
		return domain.TokenGrant{}, domain.User{}, s.recordFailure(ctx, user, in.IPAddress, now)
	}

	// TOTP gate. Failures here intentionally skip the lockout counter: the
	// password was correct, so this is not a brute-force signal of the same
	// kind.
	if user.TOTPEnabled {
		if user.TOTPSecret == nil || *user.TOTPSecret == "" {
			return domain.TokenGrant{}, domain.User{}, ErrTOTPSetupMissing
		}
		if in.TOTPCode == "" {
			return domain.TokenGrant{}, domain.User{}, ErrTOTPRequired
		}
		if !totpx.VerifyCode(*user.TOTPSecret, in.TOTPCode, now) {
			s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
				"invalid totp code",
				map[string]any{"username": user.Username}, user.ID, in.IPAddress)
			return domain.TokenGrant{}, domain.User{}, ErrInvalidCredentials
		}
	}

	if !user.IPAllowed(in.IPAddress) {
		s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
			"login from disallowed ip",
			map[string]any{"username": user.Username, "allowed_ips": user.AllowedIPs},
			user.ID, in.IPAddress)
		return domain.TokenGrant{}, domain.User{}, ErrIPForbidden
	}

	if err := s.Store.Users().RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return domain.TokenGrant{}, domain.User{}, fmt.Errorf("record login success: %w", err)
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}
	token, err := s.Tokens.Issue(user.ID, user.Username, user.Role, ttl, now)
	if err != nil {
		return domain.TokenGrant{}, domain.User{}, fmt.Errorf("issue token: %w", err)
	}

	if s.Sessions != nil {
		if _, err := s.Sessions.Open(ctx, user.ID, domain.SessionTypeWeb, in.IPAddress, in.UserAgent); err != nil {
			// Session bookkeeping must not fail a valid login.
			s.Audit.Record(ctx, domain.LevelError, domain.SourceAuth,
				"failed to open panel session",
				map[string]any{"error": err.Error()}, user.ID, in.IPAddress)
		}
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceAuth,
		"user logged in",
		map[string]any{"username": user.Username}, user.ID, in.IPAddress)

	return domain.TokenGrant{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   ttl,
	}, user, nil
}

// recordFailure bumps the counter atomically and emits the matching audit
// event. Always returns ErrInvalidCredentials to the caller; the lock only
// takes effect on the next attempt.
func (s *LoginService) recordFailure(ctx context.Context, user domain.User, ip string, now time.Time) error {
	policy := s.Policy.normalize()

	out, err := s.Store.Users().RecordLoginFailure(ctx, user.ID, policy.MaxFailed, policy.LockFor, now)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	if out.LockedUntil != nil && out.FailedLoginAttempts == policy.MaxFailed {
		s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
			"account locked after repeated failures",
			map[string]any{
				"username":     user.Username,
				"attempts":     out.FailedLoginAttempts,
				"locked_until": out.LockedUntil,
			}, user.ID, ip)
	} else {
		s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
			"failed login attempt",
			map[string]any{
				"username": user.Username,
				"attempts": out.FailedLoginAttempts,
			}, user.ID, ip)
	}

	return ErrInvalidCredentials
}
