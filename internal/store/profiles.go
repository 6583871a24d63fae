package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"travel-concierge/internal/models"
)

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Create stores the profile once per session; a second write for the same
// session returns ErrAlreadyExists and leaves the first untouched.
func (s *ProfileStore) Create(ctx context.Context, p *models.TripPlanningProfile) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trip_profiles (id, session_id, profile, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO NOTHING`,
		p.ID, p.SessionID, mustJSON(p), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trip profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert trip profile: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: profile for session %s", ErrAlreadyExists, p.SessionID)
	}
	return nil
}

func (s *ProfileStore) GetBySession(ctx context.Context, sessionID string) (*models.TripPlanningProfile, error) {
	return s.get(ctx, `SELECT profile FROM trip_profiles WHERE session_id = $1`, sessionID)
}

func (s *ProfileStore) Get(ctx context.Context, id string) (*models.TripPlanningProfile, error) {
	return s.get(ctx, `SELECT profile FROM trip_profiles WHERE id = $1`, id)
}

func (s *ProfileStore) get(ctx context.Context, query, arg string) (*models.TripPlanningProfile, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip profile: %w", err)
	}
	var p models.TripPlanningProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode trip profile: %w", err)
	}
	return &p, nil
}
