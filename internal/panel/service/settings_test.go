package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newSettingsService(t *testing.T) *SettingsService {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &SettingsService{
		Store: s,
		Audit: &AuditService{Store: s, Logger: logger},
	}
}

func TestSettingsGetReturnsDefaultsBeforeFirstWrite(t *testing.T) {
	svc := newSettingsService(t)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSettings(), got)
}

func TestSettingsUpdateReplacesOnlySuppliedSections(t *testing.T) {
	svc := newSettingsService(t)
	ctx := context.Background()

	security := domain.SecuritySettings{
		MaxFailedLogins:    3,
		LockoutDurationMin: 60,
		AutoLockTimeoutMin: 15,
	}
	updated, err := svc.Update(ctx, "admin", SettingsUpdate{Security: &security})
	require.NoError(t, err)
	require.Equal(t, security, updated.Security)
	require.Equal(t, "admin", updated.UpdatedBy)

	// Untouched sections keep their defaults.
	defaults := domain.DefaultSettings()
	require.Equal(t, defaults.RDP, updated.RDP)
	require.Equal(t, defaults.Files, updated.Files)

	// A later update of another section must not revert the first.
	rdp := domain.RDPSettings{DefaultPort: 3390, DefaultQuality: "low"}
	updated, err = svc.Update(ctx, "admin", SettingsUpdate{RDP: &rdp})
	require.NoError(t, err)
	require.Equal(t, rdp, updated.RDP)
	require.Equal(t, security, updated.Security)

	stored, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, security, stored.Security)
	require.Equal(t, rdp, stored.RDP)
	require.WithinDuration(t, time.Now().UTC(), stored.UpdatedAt, 5*time.Second)
}

func TestSettingsUpdateFeedsLockoutPolicy(t *testing.T) {
	svc := newSettingsService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "admin", SettingsUpdate{Security: &domain.SecuritySettings{
		MaxFailedLogins:    3,
		LockoutDurationMin: 10,
	}})
	require.NoError(t, err)

	policy := svc.LockoutPolicy(ctx)
	require.Equal(t, 3, policy.MaxFailed)
	require.Equal(t, 10*time.Minute, policy.LockFor)
}
