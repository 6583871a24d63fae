package visa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travel-concierge/internal/models"
)

func TestRules_Evaluate(t *testing.T) {
	tests := []struct {
		name         string
		query        models.VisaEligibilityQuery
		decided      bool
		wantType     models.EligibilityType
		wantCategory string
		wantPackages bool
	}{
		{
			name:         "german tourist in schengen",
			query:        models.VisaEligibilityQuery{Nationality: "Germany", ApplyingFrom: "Germany", Destination: "France", Purpose: "tourism", DurationDays: 90},
			decided:      true,
			wantType:     models.EligibilityVisaFree,
			wantPackages: true,
		},
		{
			name:         "visa waiver short stay",
			query:        models.VisaEligibilityQuery{Nationality: "USA", ApplyingFrom: "USA", USAStatus: "citizen", Destination: "italy", Purpose: "business", DurationDays: 10},
			decided:      true,
			wantType:     models.EligibilityVisaFree,
			wantPackages: true,
		},
		{
			name:         "visa waiver long stay needs national visa",
			query:        models.VisaEligibilityQuery{Nationality: "Canada", ApplyingFrom: "Canada", Destination: "Spain", Purpose: "study", DurationDays: 200},
			decided:      true,
			wantType:     models.EligibilityVisaRequired,
			wantCategory: CategoryNational,
			wantPackages: true,
		},
		{
			name:         "annex one national",
			query:        models.VisaEligibilityQuery{Nationality: "India", ApplyingFrom: "India", Destination: "Netherlands", Purpose: "tourism", DurationDays: 15},
			decided:      true,
			wantType:     models.EligibilityVisaRequired,
			wantCategory: CategoryShortStay,
			wantPackages: true,
		},
		{
			name:         "own country",
			query:        models.VisaEligibilityQuery{Nationality: "Japan", ApplyingFrom: "Japan", Destination: "Japan", Purpose: "family", DurationDays: 30},
			decided:      true,
			wantType:     models.EligibilityVisaFree,
			wantPackages: true,
		},
		{
			name:    "non schengen destination",
			query:   models.VisaEligibilityQuery{Nationality: "Germany", ApplyingFrom: "Germany", Destination: "Japan", Purpose: "tourism", DurationDays: 10},
			decided: false,
		},
		{
			name:    "unknown nationality",
			query:   models.VisaEligibilityQuery{Nationality: "Peru", ApplyingFrom: "Peru", Destination: "France", Purpose: "tourism", DurationDays: 10},
			decided: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := Rules{}.Evaluate(&tt.query)
			require.Equal(t, tt.decided, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantType, res.Type)
			assert.Equal(t, tt.wantCategory, res.VisaCategory)
			assert.Equal(t, tt.wantPackages, ShowPackages(res))
			assert.NotEmpty(t, res.Analysis)
		})
	}
}

func TestShowPackages(t *testing.T) {
	assert.False(t, ShowPackages(&models.EligibilityResult{Type: models.EligibilityVisaRequired}))
	assert.False(t, ShowPackages(&models.EligibilityResult{Type: models.EligibilityNotEligible}))
	assert.False(t, ShowPackages(&models.EligibilityResult{Type: models.EligibilityNeedsMoreInfo}))
	assert.True(t, ShowPackages(&models.EligibilityResult{Type: models.EligibilityEligible}))
}

func TestSchengenMembership(t *testing.T) {
	assert.Len(t, schengenStates, 29)
	assert.True(t, IsSchengen("czech republic"))
	assert.False(t, IsSchengen("Ireland"))
	assert.False(t, IsSchengen("Cyprus"))
}
