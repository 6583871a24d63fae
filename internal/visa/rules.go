package visa

import (
	"fmt"
	"strings"

	"travel-concierge/internal/models"
)

// ShortStayDays is the Schengen 90/180 limit.
const ShortStayDays = 90

const (
	CategoryShortStay = "Schengen short-stay (C) visa"
	CategoryNational  = "National long-stay (D) visa"
)

var schengenStates = setOf(
	"Austria", "Belgium", "Bulgaria", "Croatia", "Czechia", "Denmark", "Estonia",
	"Finland", "France", "Germany", "Greece", "Hungary", "Iceland", "Italy", "Latvia",
	"Liechtenstein", "Lithuania", "Luxembourg", "Malta", "Netherlands", "Norway",
	"Poland", "Portugal", "Romania", "Slovakia", "Slovenia", "Spain", "Sweden",
	"Switzerland",
)

// freeMovement holds EU, EEA and Swiss nationals.
var freeMovement = setOf(
	"Austria", "Belgium", "Bulgaria", "Croatia", "Cyprus", "Czechia", "Denmark",
	"Estonia", "Finland", "France", "Germany", "Greece", "Hungary", "Ireland", "Italy",
	"Latvia", "Lithuania", "Luxembourg", "Malta", "Netherlands", "Poland", "Portugal",
	"Romania", "Slovakia", "Slovenia", "Spain", "Sweden", "Iceland", "Liechtenstein",
	"Norway", "Switzerland",
)

// shortStayWaiver holds nationalities admitted visa-free for short stays.
var shortStayWaiver = setOf(
	"United States", "Canada", "United Kingdom", "Australia", "New Zealand", "Japan",
	"South Korea", "Singapore", "Brazil", "Mexico", "Argentina", "Chile", "Israel",
	"Malaysia", "United Arab Emirates", "Taiwan", "Uruguay", "Costa Rica",
)

// shortStayVisa holds nationalities that need a C visa for any Schengen stay.
var shortStayVisa = setOf(
	"India", "China", "Nigeria", "Pakistan", "Philippines", "Egypt", "Vietnam",
	"Indonesia", "South Africa", "Turkey", "Bangladesh", "Morocco", "Ghana", "Kenya",
)

var shortStayPurposes = setOf("tourism", "business", "family", "transit", "medical")

var aliases = map[string]string{
	"usa":                      "United States",
	"us":                       "United States",
	"united states of america": "United States",
	"uk":                       "United Kingdom",
	"great britain":            "United Kingdom",
	"czech republic":           "Czechia",
	"holland":                  "Netherlands",
	"uae":                      "United Arab Emirates",
	"korea":                    "South Korea",
}

// Rules decides the cases that need no analysis: travel within the Schengen
// area by free-movement, visa-waiver and Annex I nationals.
type Rules struct{}

func (Rules) Evaluate(q *models.VisaEligibilityQuery) (*models.EligibilityResult, bool) {
	nat := Canonical(q.Nationality)
	dest := Canonical(q.Destination)
	purpose := strings.ToLower(strings.TrimSpace(q.Purpose))

	if nat == dest && nat != "" {
		return &models.EligibilityResult{
			Type:     models.EligibilityVisaFree,
			Analysis: fmt.Sprintf("As a citizen of %s you do not need a visa to travel there.", nat),
		}, true
	}

	if !schengenStates[dest] {
		return nil, false
	}

	switch {
	case freeMovement[nat]:
		return &models.EligibilityResult{
			Type:     models.EligibilityVisaFree,
			Analysis: fmt.Sprintf("%s nationals enjoy free movement in %s and need no visa for %s.", nat, dest, purpose),
			Tips:     []string{"Carry a valid passport or national ID card."},
		}, true

	case q.DurationDays > ShortStayDays || !shortStayPurposes[purpose]:
		if !shortStayWaiver[nat] && !shortStayVisa[nat] {
			return nil, false
		}
		return &models.EligibilityResult{
			Type:         models.EligibilityVisaRequired,
			Analysis:     fmt.Sprintf("A stay of %d days for %s in %s needs a national visa issued by %s.", q.DurationDays, purpose, dest, dest),
			VisaCategory: CategoryNational,
			Tips: []string{
				"Apply at the consulate of " + dest + " in your country of residence.",
				"Processing can take several weeks; apply early.",
			},
		}, true

	case shortStayWaiver[nat]:
		return &models.EligibilityResult{
			Type:     models.EligibilityVisaFree,
			Analysis: fmt.Sprintf("%s nationals can visit %s visa-free for up to %d days in any 180-day period.", nat, dest, ShortStayDays),
			Tips:     []string{"Your passport must be valid for at least 3 months after you leave the Schengen area."},
		}, true

	case shortStayVisa[nat]:
		return &models.EligibilityResult{
			Type:         models.EligibilityVisaRequired,
			Analysis:     fmt.Sprintf("%s nationals need a Schengen visa to visit %s.", nat, dest),
			VisaCategory: CategoryShortStay,
			Tips: []string{
				"Apply at the consulate of " + dest + " up to 6 months before travel.",
				"Travel medical insurance with at least EUR 30,000 cover is mandatory.",
			},
		}, true
	}
	return nil, false
}

// IsSchengen reports whether country belongs to the Schengen area.
func IsSchengen(country string) bool {
	return schengenStates[Canonical(country)]
}

// Canonical resolves common aliases and capitalisation to the table names.
func Canonical(country string) string {
	c := strings.TrimSpace(country)
	if alias, ok := aliases[strings.ToLower(c)]; ok {
		return alias
	}
	for _, set := range []map[string]bool{schengenStates, freeMovement, shortStayWaiver, shortStayVisa} {
		for name := range set {
			if strings.EqualFold(name, c) {
				return name
			}
		}
	}
	return c
}

// ShowPackages decides whether assistance packages are offered with a result.
func ShowPackages(r *models.EligibilityResult) bool {
	switch r.Type {
	case models.EligibilityVisaFree, models.EligibilityEligible:
		return true
	case models.EligibilityVisaRequired:
		return r.VisaCategory != ""
	}
	return false
}

func setOf(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
