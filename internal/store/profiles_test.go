package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-concierge/internal/models"
)

func TestProfileStore_CreateIsWriteOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := &models.TripPlanningProfile{ID: "p-1", SessionID: "onb-1", AgentName: "Nova"}

	mock.ExpectExec(`INSERT INTO trip_profiles .+ ON CONFLICT \(session_id\) DO NOTHING`).
		WithArgs("p-1", "onb-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO trip_profiles`).
		WithArgs("p-2", "onb-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := NewProfileStore(db)
	require.NoError(t, s.Create(context.Background(), p))

	again := *p
	again.ID = "p-2"
	assert.ErrorIs(t, s.Create(context.Background(), &again), ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileStore_GetBySession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := models.TripPlanningProfile{SessionID: "onb-1", AgentName: "Nova", Destinations: []string{"Japan"}}
	mock.ExpectQuery(`SELECT profile FROM trip_profiles WHERE session_id = \$1`).
		WithArgs("onb-1").
		WillReturnRows(sqlmock.NewRows([]string{"profile"}).AddRow(mustJSON(p)))

	got, err := NewProfileStore(db).GetBySession(context.Background(), "onb-1")
	require.NoError(t, err)
	assert.Equal(t, "Nova", got.AgentName)
	assert.Equal(t, []string{"Japan"}, got.Destinations)
}

func TestProfileStore_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT profile FROM trip_profiles WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"profile"}))

	_, err = NewProfileStore(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
