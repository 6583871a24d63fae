// internal/workers/booking/index-order/models.go
package indexorder

import "travel-concierge/internal/models"

type Input struct {
	Order models.Order `json:"order"`
}

type Output struct {
	Indexed bool   `json:"indexed"`
	OrderID string `json:"orderId"`
}
