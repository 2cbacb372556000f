package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/totpx"
)

var ErrTOTPAlreadyEnabled = errors.New("totp already enabled")

// TwoFactorService implements the two-phase TOTP enrollment contract:
// Setup stores a pending secret, Enable verifies a code against it before
// flipping the flag. A pending secret alone never gates login.
type TwoFactorService struct {
	Store       store.Store
	Hasher      *cryptox.Hasher
	Provisioner *totpx.Provisioner
	Audit       *AuditService

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (s *TwoFactorService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Setup generates a fresh secret and stores it pending. Re-running setup
// before enabling simply replaces the pending secret.
func (s *TwoFactorService) Setup(ctx context.Context, userID string) (totpx.Enrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return totpx.Enrollment{}, err
	}
	if user.TOTPEnabled {
		return totpx.Enrollment{}, ErrTOTPAlreadyEnabled
	}

	enrollment, err := s.Provisioner.NewEnrollment(user.Username)
	if err != nil {
		return totpx.Enrollment{}, err
	}

	if err := s.Store.Users().SetPendingTOTPSecret(ctx, userID, enrollment.Secret); err != nil {
		return totpx.Enrollment{}, fmt.Errorf("store pending secret: %w", err)
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceAuth,
		"totp enrollment started",
		map[string]any{"username": user.Username}, user.ID, "")
	return enrollment, nil
}

// Enable verifies code against the pending secret and flips the flag. An
// invalid code leaves the account unchanged.
func (s *TwoFactorService) Enable(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPEnabled {
		return ErrTOTPAlreadyEnabled
	}
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return ErrTOTPSetupMissing
	}

	if !totpx.VerifyCode(*user.TOTPSecret, code, s.now()) {
		s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
			"totp enable rejected: invalid code",
			map[string]any{"username": user.Username}, user.ID, "")
		return ErrInvalidCredentials
	}

	if err := s.Store.Users().EnableTOTP(ctx, userID); err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceAuth,
		"totp enabled",
		map[string]any{"username": user.Username}, user.ID, "")
	return nil
}

// Disable turns 2FA off. The account password is required again so a
// hijacked session cannot silently strip the second factor.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		s.Audit.Record(ctx, domain.LevelWarning, domain.SourceAuth,
			"totp disable rejected: wrong password",
			map[string]any{"username": user.Username}, user.ID, "")
		return ErrInvalidCredentials
	}

	if err := s.Store.Users().DisableTOTP(ctx, userID); err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceAuth,
		"totp disabled",
		map[string]any{"username": user.Username}, user.ID, "")
	return nil
}
