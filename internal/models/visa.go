package models

type EligibilityType string

const (
	EligibilityVisaFree      EligibilityType = "visa-free"
	EligibilityVisaRequired  EligibilityType = "visa-required"
	EligibilityEligible      EligibilityType = "eligible"
	EligibilityNotEligible   EligibilityType = "not-eligible"
	EligibilityNeedsMoreInfo EligibilityType = "needs-more-info"
	EligibilityError         EligibilityType = "error"
)

type EligibilitySource string

const (
	SourceRules    EligibilitySource = "rules"
	SourceAnalysis EligibilitySource = "analysis"
)

// VisaEligibilityQuery holds the questionnaire answers. USAStatus is only
// meaningful when ApplyingFrom is "USA".
type VisaEligibilityQuery struct {
	Nationality  string `json:"nationality" validate:"required"`
	ApplyingFrom string `json:"applyingFrom" validate:"required"`
	USAStatus    string `json:"usaStatus,omitempty" validate:"required_if=ApplyingFrom USA"`
	Destination  string `json:"destination" validate:"required"`
	Purpose      string `json:"purpose" validate:"required,oneof=tourism business study work family transit medical"`
	DurationDays int    `json:"durationDays" validate:"min=1,max=3650"`
}

type EligibilityResult struct {
	Type         EligibilityType   `json:"type"`
	ShowPackages bool              `json:"showPackages"`
	Analysis     string            `json:"analysis"`
	Tips         []string          `json:"tips,omitempty"`
	Alternative  string            `json:"alternative,omitempty"`
	VisaCategory string            `json:"visaCategory,omitempty"`
	Source       EligibilitySource `json:"source"`
}
