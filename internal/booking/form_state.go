package booking

import (
	"errors"
	"fmt"

	"travel-concierge/internal/models"
)

var (
	ErrUnknownPlan        = errors.New("UNKNOWN_PLAN")
	ErrUnknownAddOn       = errors.New("UNKNOWN_ADDON")
	ErrQuantityOutOfRange = errors.New("QUANTITY_OUT_OF_RANGE")
)

// FormState owns the draft of one wizard session. Totals are always derived
// from the draft, never stored.
type FormState struct {
	SessionID string
	UserID    string
	Draft     models.BookingDraft

	catalogue *Catalogue
}

func NewFormState(sessionID, userID string, catalogue *Catalogue) *FormState {
	if catalogue == nil {
		catalogue = DefaultCatalogue()
	}
	return &FormState{
		SessionID: sessionID,
		UserID:    userID,
		Draft:     models.BookingDraft{SelectedAddOns: []models.SelectedAddOn{}},
		catalogue: catalogue,
	}
}

func (f *FormState) Catalogue() *Catalogue {
	return f.catalogue
}

func (f *FormState) SetContact(c models.Contact) {
	f.Draft.Contact = c
}

func (f *FormState) SetTrip(t models.Trip) {
	f.Draft.Trip = t
}

func (f *FormState) SelectPlan(planID string) error {
	plan, ok := f.catalogue.Plan(planID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlan, planID)
	}
	f.Draft.SelectedPlan = &plan
	return nil
}

// SetAddOnQuantity sets an add-on's quantity, keeping selection order. Zero
// removes the add-on. Setting the same quantity twice is a no-op.
func (f *FormState) SetAddOnQuantity(addOnID string, quantity int) error {
	addOn, ok := f.catalogue.AddOn(addOnID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAddOn, addOnID)
	}
	if quantity < 0 || quantity > addOn.MaxQuantity {
		return fmt.Errorf("%w: %s allows 0..%d, got %d", ErrQuantityOutOfRange, addOnID, addOn.MaxQuantity, quantity)
	}

	selected := f.Draft.SelectedAddOns
	for i := range selected {
		if selected[i].AddOn.ID != addOnID {
			continue
		}
		if quantity == 0 {
			f.Draft.SelectedAddOns = append(selected[:i:i], selected[i+1:]...)
		} else {
			selected[i].Quantity = quantity
		}
		return nil
	}
	if quantity > 0 {
		f.Draft.SelectedAddOns = append(selected, models.SelectedAddOn{AddOn: addOn, Quantity: quantity})
	}
	return nil
}

// Snapshot is a deep copy of the draft.
func (f *FormState) Snapshot() models.BookingDraft {
	return f.Draft.Clone()
}
