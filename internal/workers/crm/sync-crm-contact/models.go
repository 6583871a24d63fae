// internal/workers/crm/sync-crm-contact/models.go
package synccrmcontact

import "travel-concierge/internal/models"

type Input struct {
	Order models.Order `json:"order"`
}

type Output struct {
	CRMContactID string `json:"crmContactId"`
	Created      bool   `json:"crmContactCreated"`
}
