// internal/workers/crm/sync-crm-contact/config.go
package synccrmcontact

import "time"

type Config struct {
	Timeout time.Duration
}
