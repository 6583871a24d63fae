package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"travel-concierge/internal/models"
)

type SchengenStore struct {
	db *sql.DB
}

func NewSchengenStore(db *sql.DB) *SchengenStore {
	return &SchengenStore{db: db}
}

func (s *SchengenStore) Create(ctx context.Context, app *models.SchengenApplication) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schengen_applications (id, version, current_step, form_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		app.ID, app.Version, app.CurrentStep, []byte(app.FormData), app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schengen application: %w", err)
	}
	return nil
}

// Update writes app only if its version is newer than the stored one, so a
// late save can never overwrite a later snapshot.
func (s *SchengenStore) Update(ctx context.Context, app *models.SchengenApplication) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE schengen_applications
		SET version = $2, current_step = $3, form_data = $4, updated_at = $5
		WHERE id = $1 AND version < $2`,
		app.ID, app.Version, app.CurrentStep, []byte(app.FormData), app.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update schengen application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update schengen application: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: application %s version %d", ErrStaleVersion, app.ID, app.Version)
	}
	return nil
}

func (s *SchengenStore) Get(ctx context.Context, id string) (*models.SchengenApplication, error) {
	var (
		app  models.SchengenApplication
		data []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, version, current_step, form_data, created_at, updated_at
		FROM schengen_applications WHERE id = $1`, id,
	).Scan(&app.ID, &app.Version, &app.CurrentStep, &data, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schengen application: %w", err)
	}
	app.FormData = data
	return &app, nil
}
