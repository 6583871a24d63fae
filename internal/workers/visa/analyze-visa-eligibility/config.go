// internal/workers/visa/analyze-visa-eligibility/config.go
package analyzevisaeligibility

import "time"

type Config struct {
	Timeout time.Duration
}
