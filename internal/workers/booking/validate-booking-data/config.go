// internal/workers/booking/validate-booking-data/config.go
package validatebookingdata

import "time"

type Config struct {
	Timeout time.Duration
	// InputSchema is the activity's JSON schema; nil skips the structural check.
	InputSchema map[string]interface{}
}
