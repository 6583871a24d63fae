// internal/workers/booking/send-booking-notification/models.go
package sendbookingnotification

import "travel-concierge/internal/models"

type Input struct {
	OrderID      string                     `json:"orderId"`
	Notification models.BookingNotification `json:"notification"`
}

type Output struct {
	NotificationStatus string `json:"notificationStatus"`
	EmailSent          bool   `json:"emailSent"`
	SMSSent            bool   `json:"smsSent"`
}
