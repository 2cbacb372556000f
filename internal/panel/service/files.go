package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/pkg/cryptox"
)

var (
	// ErrPathOutsideRoot reports a traversal attempt past the managed root.
	ErrPathOutsideRoot = errors.New("path escapes the managed root")

	ErrFileTooLarge     = errors.New("file exceeds the size limit")
	ErrExtensionBlocked = errors.New("file extension not allowed")
	ErrFileNotFound     = errors.New("file not found")
	ErrNotARegularFile  = errors.New("not a regular file")
)

// FileService manages a single directory tree on the host. Every path from
// a client is resolved against Root and rejected if it escapes it.
type FileService struct {
	Root     string
	Settings *SettingsService
	Audit    *AuditService
}

// resolve maps a client-supplied relative path onto the managed root.
func (s *FileService) resolve(rel string) (string, error) {
	rel = strings.TrimPrefix(strings.TrimSpace(rel), "/")
	abs := filepath.Join(s.Root, filepath.Clean("/"+rel))

	// Join+Clean already collapses any "..", but verify against the root
	// anyway so a future refactor cannot quietly reopen traversal.
	if abs != s.Root && !strings.HasPrefix(abs, s.Root+string(filepath.Separator)) {
		return "", ErrPathOutsideRoot
	}
	return abs, nil
}

// List returns the entries of one directory, folders first.
func (s *FileService) List(ctx context.Context, dir string) ([]domain.FileItem, error) {
	abs, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	items := make([]domain.FileItem, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		item := domain.FileItem{
			Name:        entry.Name(),
			Path:        filepath.ToSlash(filepath.Join("/", dir, entry.Name())),
			Type:        "file",
			Modified:    info.ModTime().UTC(),
			Permissions: info.Mode().Perm().String(),
		}
		if entry.IsDir() {
			item.Type = "folder"
		} else {
			item.Size = info.Size()
		}
		items = append(items, item)
	}
	return items, nil
}

// Upload writes content to dir/filename, enforcing the size and extension
// limits from settings. Returns the stored item with its checksum.
func (s *FileService) Upload(ctx context.Context, dir, filename, uploadedBy string, content io.Reader) (domain.FileItem, error) {
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return domain.FileItem{}, err
	}

	if !extensionAllowed(filename, settings.Files.AllowedExtensions) {
		return domain.FileItem{}, ErrExtensionBlocked
	}

	abs, err := s.resolve(filepath.Join(dir, filepath.Base(filename)))
	if err != nil {
		return domain.FileItem{}, err
	}

	maxBytes := int64(settings.Files.MaxFileSizeMB) * mib
	data, err := io.ReadAll(io.LimitReader(content, maxBytes+1))
	if err != nil {
		return domain.FileItem{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return domain.FileItem{}, ErrFileTooLarge
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return domain.FileItem{}, err
	}
	if err := os.WriteFile(abs, data, 0o640); err != nil {
		return domain.FileItem{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return domain.FileItem{}, err
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceFileManager,
		"file uploaded",
		map[string]any{"path": abs, "size": len(data)}, uploadedBy, "")

	return domain.FileItem{
		Name:        filepath.Base(abs),
		Path:        filepath.ToSlash(filepath.Join("/", dir, filepath.Base(abs))),
		Type:        "file",
		Size:        info.Size(),
		Modified:    info.ModTime().UTC(),
		Permissions: info.Mode().Perm().String(),
		Checksum:    cryptox.Checksum(data),
	}, nil
}

// Open returns a reader over one file for download, plus its metadata.
// The caller closes the reader.
func (s *FileService) Open(ctx context.Context, path string) (io.ReadCloser, domain.FileItem, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return nil, domain.FileItem{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.FileItem{}, ErrFileNotFound
		}
		return nil, domain.FileItem{}, err
	}
	if !info.Mode().IsRegular() {
		return nil, domain.FileItem{}, ErrNotARegularFile
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, domain.FileItem{}, err
	}

	return f, domain.FileItem{
		Name:        info.Name(),
		Path:        filepath.ToSlash(filepath.Join("/", path)),
		Type:        "file",
		Size:        info.Size(),
		Modified:    info.ModTime().UTC(),
		Permissions: info.Mode().Perm().String(),
	}, nil
}

// Delete removes one file or empty folder.
func (s *FileService) Delete(ctx context.Context, path, deletedBy string) error {
	abs, err := s.resolve(path)
	if err != nil {
		return err
	}
	if abs == s.Root {
		return ErrPathOutsideRoot
	}

	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrFileNotFound
		}
		return err
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceFileManager,
		"file deleted",
		map[string]any{"path": abs}, deletedBy, "")
	return nil
}

// CreateFolder makes a directory under the root.
func (s *FileService) CreateFolder(ctx context.Context, path string) error {
	abs, err := s.resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(abs, 0o750)
}

func extensionAllowed(filename string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}
