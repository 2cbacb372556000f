package sqlite

import (
	"context"
	"encoding/json"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
)

type settingsRepo struct {
	db dbtx
}

// Settings live in a single-row table as one JSON document, so partial
// section updates replace the row wholesale.
func (r *settingsRepo) GetSettings(ctx context.Context) (domain.AppSettings, error) {
	var (
		doc       string
		updatedBy string
		s         domain.AppSettings
	)
	row := r.db.QueryRowContext(ctx,
		`SELECT doc, updated_by, updated_at FROM app_settings WHERE id = 1`)
	if err := row.Scan(&doc, &updatedBy, &s.UpdatedAt); err != nil {
		return domain.AppSettings{}, mapNotFound(err)
	}
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return domain.AppSettings{}, err
	}
	s.UpdatedBy = updatedBy
	return s, nil
}

func (r *settingsRepo) PutSettings(ctx context.Context, s domain.AppSettings) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO app_settings (id, doc, updated_by, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			doc = excluded.doc,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		string(doc), s.UpdatedBy, s.UpdatedAt,
	)
	return err
}
