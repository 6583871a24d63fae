package models

// BookingNotification is the payload handed to the notification channels and
// to the fulfilment process after an order is stored.
type BookingNotification struct {
	OrderID      string `json:"orderId"`
	CustomerName string `json:"customerName"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	PlanName     string `json:"planName"`
	Destination  string `json:"destination"`
	Departure    string `json:"departureDate"`
	TotalAmount  string `json:"totalAmount"`
	Currency     string `json:"currency"`
}

// NewBookingNotification summarises an order for customer messages.
func NewBookingNotification(o *Order) BookingNotification {
	return BookingNotification{
		OrderID:      o.ID,
		CustomerName: o.Contact.Name,
		Email:        o.Contact.Email,
		Phone:        o.Contact.Phone,
		PlanName:     o.Plan.Name,
		Destination:  o.Trip.Destination,
		Departure:    o.Trip.DepartureDate,
		TotalAmount:  FormatMinor(o.TotalAmount),
		Currency:     o.Currency,
	}
}
