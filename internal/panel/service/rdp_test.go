package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store/drivers/sqlite"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
	"github.com/harwood-dev/deskgate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newRDPService(t *testing.T) (*RDPService, *sqlite.Store) {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	box, err := cryptox.NewSecretBox([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &RDPService{
		Store: s,
		Box:   box,
		Audit: &AuditService{Store: s, Logger: logger},
	}, s
}

func seedRDPUser(t *testing.T, s *sqlite.Store, username string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Role:         domain.RoleUser,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestRDPCredentialRoundTrip(t *testing.T) {
	svc, s := newRDPService(t)
	ctx := context.Background()
	owner := seedRDPUser(t, s, "owner")

	conn, err := svc.Create(ctx, owner.ID, RDPCreateInput{
		Host:     "10.0.0.20",
		Username: "Administrator",
		Password: "hunter2-rdp",
	})
	require.NoError(t, err)
	require.Equal(t, 3389, conn.Port)
	require.NotEqual(t, "hunter2-rdp", conn.PasswordSealed)

	password, err := svc.Credential(ctx, owner.ID, conn.ID)
	require.NoError(t, err)
	require.Equal(t, "hunter2-rdp", password)
}

func TestRDPCredentialOwnerOnly(t *testing.T) {
	svc, s := newRDPService(t)
	ctx := context.Background()
	owner := seedRDPUser(t, s, "owner")
	other := seedRDPUser(t, s, "other")

	conn, err := svc.Create(ctx, owner.ID, RDPCreateInput{
		Host:     "10.0.0.20",
		Username: "Administrator",
		Password: "hunter2-rdp",
	})
	require.NoError(t, err)

	_, err = svc.Credential(ctx, other.ID, conn.ID)
	require.ErrorIs(t, err, ErrNotConnectionOwner)
}

func TestRDPStatusTransitions(t *testing.T) {
	svc, s := newRDPService(t)
	ctx := context.Background()
	owner := seedRDPUser(t, s, "owner")

	conn, err := svc.Create(ctx, owner.ID, RDPCreateInput{
		Host:     "10.0.0.20",
		Username: "Administrator",
		Password: "pw",
	})
	require.NoError(t, err)
	require.Equal(t, domain.RDPDisconnected, conn.Status)

	started, err := svc.Connect(ctx, owner.ID, conn.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RDPConnected, started.Status)
	require.NotNil(t, started.StartedAt)

	// A second connect on an active target conflicts.
	_, err = svc.Connect(ctx, owner.ID, conn.ID)
	require.ErrorIs(t, err, ErrConnectionActive)

	require.NoError(t, svc.Disconnect(ctx, owner.ID, conn.ID, ""))
	ended, err := s.RDPConnections().GetConnectionByID(ctx, conn.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RDPDisconnected, ended.Status)
	require.NotNil(t, ended.EndedAt)

	require.ErrorIs(t, svc.Disconnect(ctx, owner.ID, conn.ID, ""), ErrConnectionInactive)
}

func TestRDPDisconnectWithReasonRecordsError(t *testing.T) {
	svc, s := newRDPService(t)
	ctx := context.Background()
	owner := seedRDPUser(t, s, "owner")

	conn, err := svc.Create(ctx, owner.ID, RDPCreateInput{
		Host:     "10.0.0.20",
		Username: "Administrator",
		Password: "pw",
	})
	require.NoError(t, err)

	_, err = svc.Connect(ctx, owner.ID, conn.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Disconnect(ctx, owner.ID, conn.ID, "network timeout"))

	got, err := s.RDPConnections().GetConnectionByID(ctx, conn.ID)
	require.NoError(t, err)
	require.Equal(t, domain.RDPError, got.Status)
	require.Equal(t, "network timeout", got.LastError)
}
