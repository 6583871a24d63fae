// internal/workers/booking/create-order-record/config.go
package createorderrecord

import "time"

type Config struct {
	Timeout time.Duration
	// Currency is used when the incoming order carries none.
	Currency string
}
