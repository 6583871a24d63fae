// internal/workers/booking/create-order-record/handler_test.go
package createorderrecord

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
	"travel-concierge/internal/store"
)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

var testNow = time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)

func createTestInput() *Input {
	return &Input{
		IdempotencyKey: "session:abc",
		Order: models.Order{
			SessionID: "abc",
			Contact:   models.Contact{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+447700900123"},
			Trip:      models.Trip{Nationality: "India", Destination: "France", DepartureDate: "2026-03-01", Travelers: 1},
			Plan:      models.Plan{ID: "standard", Name: "Standard", Price: 49900},
			AddOns: []models.SelectedAddOn{
				{AddOn: models.AddOn{ID: "rush-processing", Name: "Rush Processing", Price: 9900, MaxQuantity: 3}, Quantity: 2},
			},
			AddonsTotal: 19800,
			TotalAmount: 69700,
		},
	}
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := &testLogger{t: t}
	orders := store.NewOrderStore(db, log)
	return NewHandler(&Config{}, orders, nil, clockwork.NewFakeClockAt(testNow), log), mock
}

func existingOrderRows(t *testing.T, o *models.Order) *sqlmock.Rows {
	t.Helper()
	enc := func(v interface{}) []byte {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return b
	}
	return sqlmock.NewRows([]string{
		"id", "idempotency_key", "session_id", "user_id", "contact", "trip", "plan", "add_ons",
		"addons_total", "total_amount", "currency", "payment_ref", "status", "created_at",
	}).AddRow(
		o.ID, o.IdempotencyKey, o.SessionID, "",
		enc(o.Contact), enc(o.Trip), enc(o.Plan), enc(o.AddOns),
		o.AddonsTotal, o.TotalAmount, o.Currency, "", string(o.Status), o.CreatedAt,
	)
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name           string
		input          *Input
		setupMock      func(t *testing.T, mock sqlmock.Sqlmock)
		expectedError  bool
		errorCode      apperrors.ErrorCode
		validateOutput func(t *testing.T, output *Output)
	}{
		{
			name:  "stores new order",
			input: createTestInput(),
			setupMock: func(t *testing.T, mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO orders`).
					WithArgs(
						sqlmock.AnyArg(), "session:abc", "abc", nil,
						sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
						int64(19800), int64(69700), "usd", nil, "submitted", testNow,
					).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec(`INSERT INTO audit_log`).
					WithArgs("order_created", "order", sqlmock.AnyArg(), sqlmock.AnyArg(), testNow).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			validateOutput: func(t *testing.T, output *Output) {
				assert.NotEmpty(t, output.OrderID)
				assert.False(t, output.Replayed)
				assert.Equal(t, "submitted", output.Status)
				assert.Equal(t, testNow, output.CreatedAt)
			},
		},
		{
			name:  "reused key returns stored order",
			input: createTestInput(),
			setupMock: func(t *testing.T, mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO orders`).
					WillReturnError(&pq.Error{Code: "23505"})

				stored := createTestInput().Order
				stored.ID = "order-42"
				stored.IdempotencyKey = "session:abc"
				stored.Currency = "usd"
				stored.Status = models.OrderStatusSubmitted
				stored.CreatedAt = testNow.Add(-time.Hour)
				mock.ExpectQuery(`SELECT .+ FROM orders WHERE idempotency_key = \$1`).
					WithArgs("session:abc").
					WillReturnRows(existingOrderRows(t, &stored))
			},
			validateOutput: func(t *testing.T, output *Output) {
				assert.Equal(t, "order-42", output.OrderID)
				assert.True(t, output.Replayed)
				assert.Equal(t, testNow.Add(-time.Hour), output.CreatedAt)
			},
		},
		{
			name:  "insert failure",
			input: createTestInput(),
			setupMock: func(t *testing.T, mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO orders`).
					WillReturnError(errors.New("connection reset by peer"))
			},
			expectedError: true,
			errorCode:     apperrors.ErrCodeOrderInsertFailed,
		},
		{
			name:  "stored order lookup fails",
			input: createTestInput(),
			setupMock: func(t *testing.T, mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO orders`).
					WillReturnError(&pq.Error{Code: "23505"})
				mock.ExpectQuery(`SELECT .+ FROM orders WHERE idempotency_key = \$1`).
					WillReturnError(errors.New("timeout"))
			},
			expectedError: true,
			errorCode:     apperrors.ErrCodeDatabaseQueryFailed,
		},
		{
			name: "missing idempotency key",
			input: func() *Input {
				in := createTestInput()
				in.IdempotencyKey = ""
				return in
			}(),
			setupMock:     func(t *testing.T, mock sqlmock.Sqlmock) {},
			expectedError: true,
			errorCode:     apperrors.ErrCodeInvalidPayload,
		},
		{
			name: "plan missing from catalogue",
			input: func() *Input {
				in := createTestInput()
				in.Order.Plan = models.Plan{ID: "platinum", Price: 100}
				return in
			}(),
			setupMock:     func(t *testing.T, mock sqlmock.Sqlmock) {},
			expectedError: true,
			errorCode:     apperrors.ErrCodeValidationFailed,
		},
		{
			name: "add-on quantity above maximum",
			input: func() *Input {
				in := createTestInput()
				in.Order.AddOns[0].Quantity = 9
				return in
			}(),
			setupMock:     func(t *testing.T, mock sqlmock.Sqlmock) {},
			expectedError: true,
			errorCode:     apperrors.ErrCodeValidationFailed,
		},
		{
			name: "order without plan",
			input: func() *Input {
				in := createTestInput()
				in.Order.Plan = models.Plan{}
				return in
			}(),
			setupMock:     func(t *testing.T, mock sqlmock.Sqlmock) {},
			expectedError: true,
			errorCode:     apperrors.ErrCodeDraftIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mock := newTestHandler(t)
			tt.setupMock(t, mock)

			output, err := handler.Execute(context.Background(), tt.input)

			if tt.expectedError {
				require.Error(t, err)
				var stdErr *apperrors.StandardError
				require.True(t, errors.As(err, &stdErr))
				assert.Equal(t, tt.errorCode, stdErr.Code)
				assert.Nil(t, output)
			} else {
				require.NoError(t, err)
				require.NotNil(t, output)
				tt.validateOutput(t, output)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Execute_KeepsOrderID(t *testing.T) {
	handler, mock := newTestHandler(t)

	input := createTestInput()
	input.Order.ID = "order-fixed"
	input.Order.Currency = "eur"
	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(
			"order-fixed", "session:abc", "abc", nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(19800), int64(69700), "eur", nil, "submitted", testNow,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnError(errors.New("audit table missing"))

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "order-fixed", output.OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RecomputesTamperedTotals(t *testing.T) {
	handler, mock := newTestHandler(t)

	input := createTestInput()
	input.Order.Plan.Price = 1
	input.Order.AddOns[0].AddOn.Price = 1
	input.Order.AddonsTotal = 2
	input.Order.TotalAmount = 3

	planJSON, err := json.Marshal(models.Plan{
		ID:       "standard",
		Name:     "Standard",
		Price:    49900,
		Features: []string{"Document checklist", "Application form review", "Email support"},
		SLADays:  10,
	})
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(
			sqlmock.AnyArg(), "session:abc", "abc", nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), planJSON, sqlmock.AnyArg(),
			int64(19800), int64(69700), "usd", nil, "submitted", testNow,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	output, err := handler.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, output.Replayed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
