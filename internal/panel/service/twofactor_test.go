package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store/drivers/sqlite"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/idx"
	"github.com/harwood-dev/deskgate/pkg/totpx"
	"github.com/stretchr/testify/require"
)

type twoFactorFixture struct {
	store   *sqlite.Store
	service *TwoFactorService
	hasher  *cryptox.Hasher
	now     time.Time
	userID  string
}

func newTwoFactorFixture(t *testing.T) *twoFactorFixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := cryptox.NewHasher("pepper")
	now := time.Now().UTC().Truncate(time.Second)

	f := &twoFactorFixture{
		store:  s,
		hasher: hasher,
		now:    now,
	}
	f.service = &TwoFactorService{
		Store:       s,
		Hasher:      hasher,
		Provisioner: &totpx.Provisioner{Issuer: "DeskGate"},
		Audit:       &AuditService{Store: s, Logger: logger},
		Now:         func() time.Time { return f.now },
	}

	hash, err := hasher.Hash("account-password")
	require.NoError(t, err)
	user := domain.User{
		ID:           idx.New().String(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), user))
	f.userID = user.ID

	return f
}

func TestTwoFactorEnrollmentFlow(t *testing.T) {
	f := newTwoFactorFixture(t)
	ctx := context.Background()

	enrollment, err := f.service.Setup(ctx, f.userID)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.URI, "otpauth://totp/")
	require.Contains(t, enrollment.URI, "DeskGate")

	// Pending secret alone does not enable 2FA.
	user, err := f.store.Users().GetUserByID(ctx, f.userID)
	require.NoError(t, err)
	require.False(t, user.TOTPEnabled)
	require.NotNil(t, user.TOTPSecret)

	// A wrong code leaves the account unchanged.
	err = f.service.Enable(ctx, f.userID, "000000")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	user, err = f.store.Users().GetUserByID(ctx, f.userID)
	require.NoError(t, err)
	require.False(t, user.TOTPEnabled)

	code, err := totpx.CodeAt(enrollment.Secret, f.now)
	require.NoError(t, err)
	require.NoError(t, f.service.Enable(ctx, f.userID, code))

	user, err = f.store.Users().GetUserByID(ctx, f.userID)
	require.NoError(t, err)
	require.True(t, user.TOTPEnabled)

	// Setup after enablement is refused.
	_, err = f.service.Setup(ctx, f.userID)
	require.ErrorIs(t, err, ErrTOTPAlreadyEnabled)
}

func TestTwoFactorEnableWithoutSetup(t *testing.T) {
	f := newTwoFactorFixture(t)

	err := f.service.Enable(context.Background(), f.userID, "123456")
	require.ErrorIs(t, err, ErrTOTPSetupMissing)
}

func TestTwoFactorSetupReplacesPendingSecret(t *testing.T) {
	f := newTwoFactorFixture(t)
	ctx := context.Background()

	first, err := f.service.Setup(ctx, f.userID)
	require.NoError(t, err)
	second, err := f.service.Setup(ctx, f.userID)
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	// Only the latest pending secret counts.
	code, err := totpx.CodeAt(first.Secret, f.now)
	require.NoError(t, err)
	require.ErrorIs(t, f.service.Enable(ctx, f.userID, code), ErrInvalidCredentials)

	code, err = totpx.CodeAt(second.Secret, f.now)
	require.NoError(t, err)
	require.NoError(t, f.service.Enable(ctx, f.userID, code))
}

func TestTwoFactorDisableRequiresPassword(t *testing.T) {
	f := newTwoFactorFixture(t)
	ctx := context.Background()

	enrollment, err := f.service.Setup(ctx, f.userID)
	require.NoError(t, err)
	code, err := totpx.CodeAt(enrollment.Secret, f.now)
	require.NoError(t, err)
	require.NoError(t, f.service.Enable(ctx, f.userID, code))

	// A hijacked session cannot strip the factor without the password.
	err = f.service.Disable(ctx, f.userID, "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.service.Disable(ctx, f.userID, "account-password"))

	user, err := f.store.Users().GetUserByID(ctx, f.userID)
	require.NoError(t, err)
	require.False(t, user.TOTPEnabled)
	require.Nil(t, user.TOTPSecret)
}
