// internal/workers/booking/validate-booking-data/models.go
package validatebookingdata

import "travel-concierge/internal/models"

type Input struct {
	Flow           string               `json:"flow"`
	Contact        models.Contact       `json:"contact"`
	Trip           models.Trip          `json:"trip"`
	PlanID         string               `json:"planId"`
	SelectedAddOns []SelectedAddOnInput `json:"selectedAddOns"`
}

type SelectedAddOnInput struct {
	AddOnID  string `json:"addOnId"`
	Quantity int    `json:"quantity"`
}

type Output struct {
	Valid       bool                `json:"valid"`
	Draft       models.BookingDraft `json:"draft"`
	AddonsTotal int64               `json:"addonsTotal"`
	TotalAmount int64               `json:"totalAmount"`
}
