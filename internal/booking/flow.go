package booking

import (
	"travel-concierge/internal/models"
)

type StepID string

const (
	StepAuth         StepID = "auth"
	StepContact      StepID = "contact"
	StepTrip         StepID = "trip"
	StepPlan         StepID = "plan"
	StepAddOns       StepID = "addons"
	StepReview       StepID = "review"
	StepConfirmation StepID = "confirmation"
)

// Step is one wizard screen with the predicate that gates Next.
type Step struct {
	ID     StepID
	Fields []string
	check  func(d *models.BookingDraft, v *Validator) map[string]string
}

// Errors returns field -> message for everything blocking the step.
func (s Step) Errors(d *models.BookingDraft, v *Validator) map[string]string {
	if s.check == nil {
		return map[string]string{}
	}
	return s.check(d, v)
}

func (s Step) Valid(d *models.BookingDraft, v *Validator) bool {
	return len(s.Errors(d, v)) == 0
}

var (
	authStep = Step{ID: StepAuth}

	contactStep = Step{
		ID:     StepContact,
		Fields: ContactFields,
		check: func(d *models.BookingDraft, v *Validator) map[string]string {
			return v.Contact(d.Contact)
		},
	}

	tripStep = Step{
		ID:     StepTrip,
		Fields: TripFields,
		check: func(d *models.BookingDraft, v *Validator) map[string]string {
			return v.Trip(d.Trip)
		},
	}

	planStep = Step{
		ID:     StepPlan,
		Fields: []string{FieldPlan},
		check: func(d *models.BookingDraft, v *Validator) map[string]string {
			out := map[string]string{}
			if msg := v.Field(FieldPlan, d); msg != "" {
				out[FieldPlan] = msg
			}
			return out
		},
	}

	addOnsStep = Step{
		ID: StepAddOns,
		check: func(d *models.BookingDraft, v *Validator) map[string]string {
			out := map[string]string{}
			for _, s := range d.SelectedAddOns {
				if s.Quantity < 1 || s.Quantity > s.AddOn.MaxQuantity {
					out["addOns."+s.AddOn.ID] = "Quantity is out of range"
				}
			}
			return out
		},
	}

	confirmationStep = Step{ID: StepConfirmation}
)

// Flow is an ordered list of steps ending in confirmation.
type Flow struct {
	Name  string
	Steps []Step
}

const (
	FlowStandard = "standard"
	FlowExpress  = "express"
)

func StandardFlow() Flow {
	f := Flow{Name: FlowStandard, Steps: []Step{authStep, contactStep, tripStep, planStep, addOnsStep}}
	return f.withReview()
}

// ExpressFlow serves plan-first products that need no trip details.
func ExpressFlow() Flow {
	f := Flow{Name: FlowExpress, Steps: []Step{authStep, contactStep, planStep}}
	return f.withReview()
}

// FlowByName falls back to the standard flow for unknown names.
func FlowByName(name string) Flow {
	if name == FlowExpress {
		return ExpressFlow()
	}
	return StandardFlow()
}

// withReview appends a review step that re-checks every preceding step, then
// the terminal confirmation step.
func (f Flow) withReview() Flow {
	before := append([]Step(nil), f.Steps...)
	review := Step{
		ID: StepReview,
		check: func(d *models.BookingDraft, v *Validator) map[string]string {
			out := map[string]string{}
			for _, s := range before {
				for k, msg := range s.Errors(d, v) {
					out[k] = msg
				}
			}
			return out
		},
	}
	f.Steps = append(before, review, confirmationStep)
	return f
}

func (f Flow) Len() int {
	return len(f.Steps)
}

// IndexOf returns the position of id, or -1.
func (f Flow) IndexOf(id StepID) int {
	for i, s := range f.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Validate checks every step before confirmation.
func (f Flow) Validate(d *models.BookingDraft, v *Validator) map[string]string {
	return f.Steps[f.IndexOf(StepReview)].Errors(d, v)
}

func (f Flow) StepIDs() []StepID {
	ids := make([]StepID, len(f.Steps))
	for i, s := range f.Steps {
		ids[i] = s.ID
	}
	return ids
}
