package booking

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"travel-concierge/internal/models"
)

const (
	DateLayout = "2006-01-02"

	// PassportValidityMonths is how long a passport must stay valid after departure.
	PassportValidityMonths = 3
)

// Field names as they appear in JSON payloads and error maps.
const (
	FieldName           = "name"
	FieldEmail          = "email"
	FieldPhone          = "phone"
	FieldNationality    = "nationality"
	FieldDestination    = "destination"
	FieldDepartureDate  = "departureDate"
	FieldReturnDate     = "returnDate"
	FieldTravelers      = "travelers"
	FieldPassportExpiry = "passportExpiry"
	FieldPlan           = "selectedPlan"
)

var (
	ContactFields = []string{FieldName, FieldEmail, FieldPhone}
	TripFields    = []string{FieldNationality, FieldDestination, FieldDepartureDate, FieldReturnDate, FieldTravelers, FieldPassportExpiry}
)

var requiredMessages = map[string]string{
	FieldName:          "Please enter your full name",
	FieldEmail:         "Please enter your email address",
	FieldPhone:         "Please enter your phone number",
	FieldNationality:   "Please select your nationality",
	FieldDestination:   "Please select a destination",
	FieldDepartureDate: "Please choose a departure date",
	FieldTravelers:     "At least one traveler is required",
}

// Validator checks booking fields. Dates are compared as local midnight in loc,
// and "today" is read from clock.
type Validator struct {
	validate *validator.Validate
	clock    clockwork.Clock
	loc      *time.Location
}

func NewValidator(clock clockwork.Clock, loc *time.Location) *Validator {
	if loc == nil {
		loc = time.Local
	}
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    clock,
		loc:      loc,
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.validate.RegisterValidation("notpast", v.notPast)
	_ = v.validate.RegisterValidation("afterdate", v.afterDate)
	_ = v.validate.RegisterValidation("passportvalid", v.passportValid)

	return v
}

// Engine exposes the underlying validator so other packages share the same rules.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Today is the current local calendar day at midnight.
func (v *Validator) Today() time.Time {
	y, m, d := v.clock.Now().In(v.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, v.loc)
}

// ParseDate parses a YYYY-MM-DD value at local midnight.
func (v *Validator) ParseDate(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(DateLayout, s, v.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Field returns the message for one field of the draft, or "" when it is valid.
func (v *Validator) Field(field string, draft *models.BookingDraft) string {
	var errs map[string]string
	switch {
	case contains(ContactFields, field):
		errs = v.Contact(draft.Contact)
	case contains(TripFields, field):
		errs = v.Trip(draft.Trip)
	case field == FieldPlan:
		if draft.SelectedPlan == nil {
			return "Please choose a plan"
		}
		return ""
	}
	return errs[field]
}

// Contact validates the contact block and returns field -> message.
func (v *Validator) Contact(c models.Contact) map[string]string {
	return v.check(c)
}

// Trip validates the trip block and returns field -> message.
func (v *Validator) Trip(t models.Trip) map[string]string {
	return v.check(t)
}

func (v *Validator) check(s interface{}) map[string]string {
	out := map[string]string{}
	err := v.validate.Struct(s)
	if err == nil {
		return out
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if msg, ok := requiredMessages[fe.Field()]; ok {
			return msg
		}
		return "This field is required"
	case "email":
		return "Please enter a valid email address"
	case "datetime":
		return "Please use the YYYY-MM-DD date format"
	case "notpast":
		return "Departure date cannot be in the past"
	case "afterdate":
		return "Return date must be after the departure date"
	case "passportvalid":
		return "Passport must be valid for at least 3 months after departure"
	case "min":
		if fe.Field() == FieldTravelers {
			return requiredMessages[FieldTravelers]
		}
		return "Value is too small"
	default:
		return "Invalid value"
	}
}

func (v *Validator) notPast(fl validator.FieldLevel) bool {
	date, ok := v.ParseDate(fl.Field().String())
	if !ok {
		return false
	}
	return !date.Before(v.Today())
}

// afterDate passes when the field is strictly after the sibling named by the
// param, or when the sibling is empty or unparsable.
func (v *Validator) afterDate(fl validator.FieldLevel) bool {
	date, ok := v.ParseDate(fl.Field().String())
	if !ok {
		return false
	}
	other, ok := v.sibling(fl)
	if !ok {
		return true
	}
	return date.After(other)
}

func (v *Validator) passportValid(fl validator.FieldLevel) bool {
	expiry, ok := v.ParseDate(fl.Field().String())
	if !ok {
		return false
	}
	departure, ok := v.sibling(fl)
	if !ok {
		return true
	}
	return !expiry.Before(departure.AddDate(0, PassportValidityMonths, 0))
}

func (v *Validator) sibling(fl validator.FieldLevel) (time.Time, bool) {
	field := fl.Parent().FieldByName(fl.Param())
	if !field.IsValid() || field.Kind() != reflect.String {
		return time.Time{}, false
	}
	return v.ParseDate(field.String())
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
