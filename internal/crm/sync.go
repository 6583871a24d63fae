// Package crm mirrors booking customers into Zoho CRM contacts.
package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/zoho"
	"travel-concierge/internal/models"
)

var ErrCRMSyncFailed = errors.New("CRM_SYNC_FAILED")

const LeadSource = "Website Booking"

// ContactUpserter is implemented by zoho.CRMClient.
type ContactUpserter interface {
	UpsertContact(ctx context.Context, contact *zoho.Contact) (string, bool, error)
}

type Syncer struct {
	crm    ContactUpserter
	logger logger.Logger
}

func NewSyncer(crm ContactUpserter, log logger.Logger) *Syncer {
	return &Syncer{
		crm:    crm,
		logger: log.WithFields(map[string]interface{}{"component": "crm_sync"}),
	}
}

func (s *Syncer) Name() string {
	return "crm_sync"
}

func (s *Syncer) Apply(ctx context.Context, order *models.Order) error {
	_, _, err := s.Sync(ctx, order)
	return err
}

// Sync upserts the order's customer by email and returns the CRM contact id.
func (s *Syncer) Sync(ctx context.Context, order *models.Order) (string, bool, error) {
	contact := ContactFromOrder(order)
	id, created, err := s.crm.UpsertContact(ctx, contact)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrCRMSyncFailed, err)
	}
	s.logger.Info("crm contact synced", map[string]interface{}{
		"orderId":   order.ID,
		"contactId": id,
		"created":   created,
	})
	return id, created, nil
}

func ContactFromOrder(order *models.Order) *zoho.Contact {
	first, last := SplitName(order.Contact.Name)
	return &zoho.Contact{
		Email:     order.Contact.Email,
		FirstName: first,
		LastName:  last,
		Phone:     order.Contact.Phone,
		Source:    LeadSource,
		Country:   order.Trip.Nationality,
		Description: fmt.Sprintf("Order %s: %s plan, %s departing %s, %s %s",
			order.ID, order.Plan.Name, order.Trip.Destination, order.Trip.DepartureDate,
			models.FormatMinor(order.TotalAmount), strings.ToUpper(order.Currency)),
	}
}

// SplitName puts everything before the last word in the first name. Zoho
// requires Last_Name, so a single word becomes the last name.
func SplitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", "Unknown"
	case 1:
		return "", parts[0]
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
