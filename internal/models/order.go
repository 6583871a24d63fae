package models

import "time"

type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
)

// Order is the durable record of a completed booking.
type Order struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotencyKey"`
	SessionID      string          `json:"sessionId"`
	UserID         string          `json:"userId,omitempty"`
	Contact        Contact         `json:"contact"`
	Trip           Trip            `json:"trip"`
	Plan           Plan            `json:"plan"`
	AddOns         []SelectedAddOn `json:"addOns"`
	AddonsTotal    int64           `json:"addonsTotal"`
	TotalAmount    int64           `json:"totalAmount"`
	Currency       string          `json:"currency"`
	PaymentRef     string          `json:"paymentRef,omitempty"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
}
