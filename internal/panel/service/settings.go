package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/store"
)

// SettingsService serves the single settings document, falling back to the
// shipped defaults until the first write.
type SettingsService struct {
	Store store.Store
	Audit *AuditService
}

// Get returns the stored document, or the defaults if nothing has been
// written yet.
func (s *SettingsService) Get(ctx context.Context) (domain.AppSettings, error) {
	settings, err := s.Store.Settings().GetSettings(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.DefaultSettings(), nil
		}
		return domain.AppSettings{}, err
	}
	return settings, nil
}

// SettingsUpdate carries the sections the caller wants replaced. Nil
// sections keep their stored values.
type SettingsUpdate struct {
	Security *domain.SecuritySettings
	RDP      *domain.RDPSettings
	Files    *domain.FileSettings
	System   *domain.SystemSettings
}

// Update replaces the supplied sections and rewrites the document. The
// read-modify-write runs in one transaction so two concurrent updates cannot
// interleave and drop each other's sections.
func (s *SettingsService) Update(ctx context.Context, updatedBy string, in SettingsUpdate) (domain.AppSettings, error) {
	var current domain.AppSettings
	var sections []string

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		current, err = tx.Settings().GetSettings(ctx)
		if errors.Is(err, store.ErrNotFound) {
			current = domain.DefaultSettings()
		} else if err != nil {
			return err
		}

		if in.Security != nil {
			current.Security = *in.Security
			sections = append(sections, "security")
		}
		if in.RDP != nil {
			current.RDP = *in.RDP
			sections = append(sections, "rdp")
		}
		if in.Files != nil {
			current.Files = *in.Files
			sections = append(sections, "files")
		}
		if in.System != nil {
			current.System = *in.System
			sections = append(sections, "system")
		}

		current.UpdatedBy = updatedBy
		current.UpdatedAt = time.Now().UTC()

		return tx.Settings().PutSettings(ctx, current)
	})
	if err != nil {
		return domain.AppSettings{}, fmt.Errorf("update settings: %w", err)
	}

	s.Audit.Record(ctx, domain.LevelInfo, domain.SourceWebPanel,
		"settings updated",
		map[string]any{"sections": sections, "updated_by": updatedBy}, "", "")
	return current, nil
}

// LockoutPolicy derives the login lockout policy from the stored security
// settings.
func (s *SettingsService) LockoutPolicy(ctx context.Context) LockoutPolicy {
	settings, err := s.Get(ctx)
	if err != nil {
		return DefaultLockoutPolicy()
	}
	return LockoutPolicy{
		MaxFailed: settings.Security.MaxFailedLogins,
		LockFor:   time.Duration(settings.Security.LockoutDurationMin) * time.Minute,
	}.normalize()
}
