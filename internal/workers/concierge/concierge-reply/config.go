// internal/workers/concierge/concierge-reply/config.go
package conciergereply

import "time"

type Config struct {
	Timeout time.Duration
}
