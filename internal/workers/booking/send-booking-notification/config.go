// internal/workers/booking/send-booking-notification/config.go
package sendbookingnotification

import "time"

type Config struct {
	Timeout time.Duration
}
