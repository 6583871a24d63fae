package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
)

const orderColumns = `id, idempotency_key, session_id, COALESCE(user_id, ''), contact, trip, plan, add_ons,
	addons_total, total_amount, currency, COALESCE(payment_ref, ''), status, created_at`

type OrderStore struct {
	db     *sql.DB
	audit  *AuditLog
	logger logger.Logger
}

func NewOrderStore(db *sql.DB, log logger.Logger) *OrderStore {
	log = log.WithFields(map[string]interface{}{"component": "order_store"})
	return &OrderStore{db: db, audit: NewAuditLog(db, log), logger: log}
}

// InsertOrder stores a new order. A reused idempotency key yields ErrDuplicateKey.
func (s *OrderStore) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, idempotency_key, session_id, user_id, contact, trip, plan, add_ons,
			addons_total, total_amount, currency, payment_ref, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID,
		o.IdempotencyKey,
		o.SessionID,
		nullable(o.UserID),
		mustJSON(o.Contact),
		mustJSON(o.Trip),
		mustJSON(o.Plan),
		mustJSON(o.AddOns),
		o.AddonsTotal,
		o.TotalAmount,
		o.Currency,
		nullable(o.PaymentRef),
		string(o.Status),
		o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: idempotency key %s", ErrDuplicateKey, o.IdempotencyKey)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	s.audit.Record(ctx, models.AuditEntry{
		EventType:    "order_created",
		ResourceType: "order",
		ResourceID:   o.ID,
		Details: map[string]interface{}{
			"sessionId":   o.SessionID,
			"plan":        o.Plan.ID,
			"totalAmount": o.TotalAmount,
			"currency":    o.Currency,
		},
		CreatedAt: o.CreatedAt,
	})
	return nil
}

func (s *OrderStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *OrderStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
	return scanOrder(row)
}

// RecentOrders lists the newest orders first.
func (s *OrderStore) RecentOrders(ctx context.Context, limit int) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o                           models.Order
		status                      string
		contact, trip, plan, addOns []byte
	)
	err := row.Scan(
		&o.ID, &o.IdempotencyKey, &o.SessionID, &o.UserID,
		&contact, &trip, &plan, &addOns,
		&o.AddonsTotal, &o.TotalAmount, &o.Currency, &o.PaymentRef, &status, &o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = models.OrderStatus(status)

	for _, part := range []struct {
		raw  []byte
		dest interface{}
	}{{contact, &o.Contact}, {trip, &o.Trip}, {plan, &o.Plan}, {addOns, &o.AddOns}} {
		if err := json.Unmarshal(part.raw, part.dest); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", o.ID, err)
		}
	}
	return &o, nil
}
