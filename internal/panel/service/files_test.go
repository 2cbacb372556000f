package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harwood-dev/deskgate/internal/panel/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newFileFixture(t *testing.T) *FileService {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := &AuditService{Store: s, Logger: logger}

	return &FileService{
		Root:     t.TempDir(),
		Settings: &SettingsService{Store: s, Audit: audit},
		Audit:    audit,
	}
}

func TestFileUploadAndDownload(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	item, err := f.Upload(ctx, "docs", "report.txt", "user-1", strings.NewReader("hello world"))
	require.NoError(t, err)
	require.Equal(t, "report.txt", item.Name)
	require.EqualValues(t, 11, item.Size)
	require.NotEmpty(t, item.Checksum)

	rc, got, err := f.Open(ctx, "docs/report.txt")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
	require.Equal(t, item.Size, got.Size)
}

func TestFileListSeparatesFolders(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	require.NoError(t, f.CreateFolder(ctx, "sub"))
	_, err := f.Upload(ctx, "", "a.txt", "user-1", strings.NewReader("a"))
	require.NoError(t, err)

	items, err := f.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	byName := map[string]string{}
	for _, item := range items {
		byName[item.Name] = item.Type
	}
	require.Equal(t, "folder", byName["sub"])
	require.Equal(t, "file", byName["a.txt"])
}

func TestFileTraversalRejected(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	// Plant a file just outside the root to prove it stays unreachable.
	outside := filepath.Join(filepath.Dir(f.Root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

	for _, path := range []string{
		"../secret.txt",
		"docs/../../secret.txt",
		"..",
	} {
		_, _, err := f.Open(ctx, path)
		require.Error(t, err, "path %q must not resolve", path)
	}

	require.Error(t, f.Delete(ctx, "../secret.txt", "user-1"))
	_, err := os.Stat(outside)
	require.NoError(t, err, "file outside the root must survive")
}

func TestFileExtensionPolicy(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	// Default settings allow txt but not exe.
	_, err := f.Upload(ctx, "", "tool.exe", "user-1", strings.NewReader("MZ"))
	require.ErrorIs(t, err, ErrExtensionBlocked)

	_, err = f.Upload(ctx, "", "notes.TXT", "user-1", strings.NewReader("ok"))
	require.NoError(t, err, "extension match is case-insensitive")

	_, err = f.Upload(ctx, "", "noextension", "user-1", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrExtensionBlocked)
}

func TestFileDelete(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	_, err := f.Upload(ctx, "", "gone.txt", "user-1", strings.NewReader("bye"))
	require.NoError(t, err)

	require.NoError(t, f.Delete(ctx, "gone.txt", "user-1"))
	_, _, err = f.Open(ctx, "gone.txt")
	require.ErrorIs(t, err, ErrFileNotFound)

	require.ErrorIs(t, f.Delete(ctx, "gone.txt", "user-1"), ErrFileNotFound)
}
