package models

import "time"

const MaxProfileDestinations = 5

// TripPlanningProfile is the onboarding questionnaire, written once per session.
type TripPlanningProfile struct {
	ID              string    `json:"id,omitempty"`
	SessionID       string    `json:"sessionId" validate:"required"`
	AgentName       string    `json:"agentName" validate:"required,max=40"`
	TravelType      string    `json:"travelType" validate:"required,oneof=solo couple family group business"`
	TravelerCount   int       `json:"travelerCount" validate:"min=1,max=50"`
	TripDuration    string    `json:"tripDuration" validate:"required"`
	Destinations    []string  `json:"destinations" validate:"required,min=1,max=5,dive,required"`
	BudgetTier      string    `json:"budgetTier" validate:"required,oneof=budget moderate premium luxury"`
	Interests       []string  `json:"interests,omitempty" validate:"max=10"`
	TravelStyle     string    `json:"travelStyle,omitempty"`
	SpecialRequests string    `json:"specialRequests,omitempty" validate:"max=1000"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
}
