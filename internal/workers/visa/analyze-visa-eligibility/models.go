// internal/workers/visa/analyze-visa-eligibility/models.go
package analyzevisaeligibility

import "travel-concierge/internal/models"

type Input struct {
	models.VisaEligibilityQuery
	RequestID string `json:"requestId,omitempty"`
}

type Output struct {
	EligibilityType string   `json:"eligibilityType"`
	ShowPackages    bool     `json:"showPackages"`
	Analysis        string   `json:"analysis"`
	Tips            []string `json:"tips,omitempty"`
	Alternative     string   `json:"alternative,omitempty"`
	VisaCategory    string   `json:"visaCategory,omitempty"`
	Source          string   `json:"source"`
}
