// internal/workers/booking/index-order/config.go
package indexorder

import "time"

type Config struct {
	Timeout time.Duration
}
