// internal/workers/booking/create-order-record/models.go
package createorderrecord

import (
	"time"

	"travel-concierge/internal/models"
)

type Input struct {
	IdempotencyKey string       `json:"idempotencyKey"`
	Order          models.Order `json:"order"`
}

type Output struct {
	OrderID   string    `json:"orderId"`
	Replayed  bool      `json:"replayed"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}
