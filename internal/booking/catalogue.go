package booking

import "travel-concierge/internal/models"

// Catalogue lists the plans and add-ons a wizard can select from.
type Catalogue struct {
	Plans  []models.Plan  `json:"plans"`
	AddOns []models.AddOn `json:"addOns"`
}

func DefaultCatalogue() *Catalogue {
	return &Catalogue{
		Plans: []models.Plan{
			{
				ID:       "standard",
				Name:     "Standard",
				Price:    49900,
				Features: []string{"Document checklist", "Application form review", "Email support"},
				SLADays:  10,
			},
			{
				ID:       "express",
				Name:     "Express",
				Price:    79900,
				Features: []string{"Everything in Standard", "Priority handling", "Phone support"},
				SLADays:  5,
			},
			{
				ID:       "premium",
				Name:     "Premium",
				Price:    129900,
				Features: []string{"Everything in Express", "Dedicated case manager", "Embassy appointment assistance"},
				SLADays:  3,
			},
		},
		AddOns: []models.AddOn{
			{ID: "rush-processing", Name: "Rush Processing", Description: "Move your file to the front of the queue", Price: 9900, MaxQuantity: 3},
			{ID: "document-review", Name: "Document Review", Description: "Expert check of each supporting document", Price: 4900, MaxQuantity: 5},
			{ID: "travel-insurance", Name: "Travel Insurance", Description: "Schengen-compliant cover per traveler", Price: 2999, MaxQuantity: 10},
			{ID: "appointment-booking", Name: "Appointment Booking", Description: "We book your consulate appointment", Price: 3900, MaxQuantity: 2},
		},
	}
}

func (c *Catalogue) Plan(id string) (models.Plan, bool) {
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return models.Plan{}, false
}

func (c *Catalogue) AddOn(id string) (models.AddOn, bool) {
	for _, a := range c.AddOns {
		if a.ID == id {
			return a, true
		}
	}
	return models.AddOn{}, false
}
