package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store/drivers/sqlite"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func newAccountService(t *testing.T) (*AccountService, *sqlite.Store) {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &AccountService{
		Store:  s,
		Hasher: cryptox.NewHasher("test-pepper"),
		Audit:  &AuditService{Store: s, Logger: logger},
		Logger: logger,
	}, s
}

func TestBootstrapSeedsDefaultAdmin(t *testing.T) {
	svc, s := newAccountService(t)
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx))

	admin, err := s.Users().GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, admin.Role)
	require.NotEmpty(t, admin.PasswordHash)

	// The generated password is random, never the literal "admin".
	require.False(t, svc.Hasher.Verify("admin", admin.PasswordHash))
}

func TestBootstrapIsNoOpWhenUsersExist(t *testing.T) {
	svc, s := newAccountService(t)
	ctx := context.Background()

	existing, err := svc.Register(ctx, RegisterInput{
		Username: "operator",
		Email:    "operator@example.com",
		Password: "operator-pass",
		Role:     domain.RoleAdmin,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Bootstrap(ctx))

	_, err = s.Users().GetUserByUsername(ctx, "admin")
	require.Error(t, err)

	got, err := s.Users().GetUserByID(ctx, existing.ID)
	require.NoError(t, err)
	require.Equal(t, "operator", got.Username)
}
