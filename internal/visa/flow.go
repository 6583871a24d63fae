// Package visa runs the eligibility questionnaire and decides the outcome from
// local rules or the remote analysis function.
package visa

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"travel-concierge/internal/models"
)

type StepID string

const (
	StepNationality   StepID = "nationality"
	StepLocation      StepID = "location"
	StepUSAStatus     StepID = "usa-status"
	StepTravelDetails StepID = "travel-details"
	StepResults       StepID = "results"
)

// ApplyingFromUSA is the answer that inserts the usa-status step.
const ApplyingFromUSA = "USA"

var stepFields = map[StepID][]string{
	StepNationality:   {"nationality"},
	StepLocation:      {"applyingFrom"},
	StepUSAStatus:     {"usaStatus"},
	StepTravelDetails: {"destination", "purpose", "durationDays"},
}

// Steps lists the questionnaire for an answer to "applying from". Applicants
// in the USA get the usa-status step right after location.
func Steps(applyingFrom string) []StepID {
	steps := []StepID{StepNationality, StepLocation}
	if applyingFrom == ApplyingFromUSA {
		steps = append(steps, StepUSAStatus)
	}
	return append(steps, StepTravelDetails, StepResults)
}

// NewQueryValidator reports fields under their JSON names.
func NewQueryValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldErrors validates the whole query and returns field -> message.
func FieldErrors(v *validator.Validate, q *models.VisaEligibilityQuery) map[string]string {
	out := map[string]string{}
	err := v.Struct(q)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["query"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() + "." + fe.Tag() {
	case "nationality.required":
		return "Please select your nationality"
	case "applyingFrom.required":
		return "Please tell us where you are applying from"
	case "usaStatus.required_if":
		return "Please select your US immigration status"
	case "destination.required":
		return "Please select a destination"
	case "purpose.required", "purpose.oneof":
		return "Please choose the purpose of your trip"
	case "durationDays.min", "durationDays.max":
		return "Please enter a stay between 1 and 3650 days"
	}
	return "This field is invalid"
}

// Questionnaire checks answers one step at a time. The step list is
// recomputed from the answers, so changing applyingFrom adds or removes
// usa-status.
type Questionnaire struct {
	Query    models.VisaEligibilityQuery
	validate *validator.Validate
}

func NewQuestionnaire(v *validator.Validate) *Questionnaire {
	if v == nil {
		v = NewQueryValidator()
	}
	return &Questionnaire{validate: v}
}

func (q *Questionnaire) Steps() []StepID {
	return Steps(q.Query.ApplyingFrom)
}

// StepErrors returns the messages for fields shown on step.
func (q *Questionnaire) StepErrors(step StepID) map[string]string {
	all := FieldErrors(q.validate, &q.Query)
	out := map[string]string{}
	for _, f := range stepFields[step] {
		if msg, ok := all[f]; ok {
			out[f] = msg
		}
	}
	return out
}
