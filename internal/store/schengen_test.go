package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-concierge/internal/models"
)

func TestSchengenStore_UpdateRejectsStaleVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	app := &models.SchengenApplication{
		ID:          "app-1",
		Version:     3,
		CurrentStep: 2,
		FormData:    json.RawMessage(`{"surname":"Rao"}`),
		UpdatedAt:   time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`UPDATE schengen_applications .+ WHERE id = \$1 AND version < \$2`).
		WithArgs("app-1", int64(3), 2, []byte(`{"surname":"Rao"}`), app.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewSchengenStore(db)
	err = s.Update(context.Background(), app)
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchengenStore_CreateThenUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	app := &models.SchengenApplication{ID: "app-1", Version: 1, CurrentStep: 1, FormData: json.RawMessage(`{}`)}

	mock.ExpectExec(`INSERT INTO schengen_applications`).
		WithArgs("app-1", int64(1), 1, []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE schengen_applications`).
		WithArgs("app-1", int64(2), 1, []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewSchengenStore(db)
	require.NoError(t, s.Create(context.Background(), app))
	app.Version = 2
	require.NoError(t, s.Update(context.Background(), app))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchengenStore_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM schengen_applications`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewSchengenStore(db).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
