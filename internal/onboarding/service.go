// Package onboarding records the trip-planning questionnaire and opens the
// concierge conversation it seeds.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
	"travel-concierge/internal/store"
)

// SeedKeyPrefix prefixes the cached profile handed to the concierge.
const SeedKeyPrefix = "concierge:seed:"

type ProfileStore interface {
	Create(ctx context.Context, p *models.TripPlanningProfile) error
	GetBySession(ctx context.Context, sessionID string) (*models.TripPlanningProfile, error)
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, c *models.ChatConversation) error
	AppendMessage(ctx context.Context, m *models.ChatMessage) error
}

type Result struct {
	Profile      *models.TripPlanningProfile `json:"profile"`
	Conversation *models.ChatConversation    `json:"conversation"`
	Welcome      *models.ChatMessage         `json:"welcome"`
}

type Service struct {
	validate      *validator.Validate
	profiles      ProfileStore
	conversations ConversationStore
	seeds         *redis.Client
	seedTTL       time.Duration
	clock         clockwork.Clock
	logger        logger.Logger
}

func NewService(profiles ProfileStore, conversations ConversationStore, seeds *redis.Client, seedTTL time.Duration, clock clockwork.Clock, log logger.Logger) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		validate:      v,
		profiles:      profiles,
		conversations: conversations,
		seeds:         seeds,
		seedTTL:       seedTTL,
		clock:         clock,
		logger:        log.WithFields(map[string]interface{}{"component": "onboarding"}),
	}
}

// Validate returns field -> message for the profile.
func (s *Service) Validate(p *models.TripPlanningProfile) map[string]string {
	out := map[string]string{}
	err := s.validate.Struct(p)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["profile"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := fe.Field()
		if strings.HasPrefix(fe.Namespace(), "TripPlanningProfile.destinations[") {
			field = "destinations"
		}
		if _, seen := out[field]; !seen {
			out[field] = message(field, fe.Tag())
		}
	}
	return out
}

func message(field, tag string) string {
	switch {
	case field == "destinations" && tag == "max":
		return fmt.Sprintf("Choose up to %d destinations", models.MaxProfileDestinations)
	case field == "destinations":
		return "Choose at least one destination"
	case field == "agentName" && tag == "max":
		return "Agent name is too long"
	case field == "travelerCount":
		return "Traveler count must be between 1 and 50"
	case tag == "oneof":
		return "Please choose one of the listed options"
	case tag == "required":
		return "This field is required"
	}
	return "This field is invalid"
}

// Complete stores the profile once per session, then opens the concierge
// conversation and greets the traveler.
func (s *Service) Complete(ctx context.Context, p *models.TripPlanningProfile) (*Result, error) {
	p.Destinations = dedupe(p.Destinations)
	if fields := s.Validate(p); len(fields) > 0 {
		return nil, apperrors.NewValidationFailedError(fields)
	}

	now := s.clock.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now

	if err := s.profiles.Create(ctx, p); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.NewProfileAlreadyExistsError(p.SessionID)
		}
		return nil, apperrors.NewDatabaseQueryFailedError("create_profile", err)
	}

	conv := &models.ChatConversation{
		ID:        uuid.NewString(),
		ProfileID: p.ID,
		AgentName: p.AgentName,
		CreatedAt: now,
	}
	if err := s.conversations.CreateConversation(ctx, conv); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("create_conversation", err)
	}

	welcome := &models.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        WelcomeMessage(p),
		CreatedAt:      now,
	}
	if err := s.conversations.AppendMessage(ctx, welcome); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("append_welcome", err)
	}

	s.cacheSeed(ctx, conv.ID, p)

	s.logger.Info("onboarding completed", map[string]interface{}{
		"sessionId":      p.SessionID,
		"profileId":      p.ID,
		"conversationId": conv.ID,
	})
	return &Result{Profile: p, Conversation: conv, Welcome: welcome}, nil
}

// Profile returns the stored profile for an onboarding session.
func (s *Service) Profile(ctx context.Context, sessionID string) (*models.TripPlanningProfile, error) {
	p, err := s.profiles.GetBySession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewResourceNotFoundError("profiles", "sessionId: "+sessionID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get_profile", err)
	}
	return p, nil
}

func (s *Service) cacheSeed(ctx context.Context, conversationID string, p *models.TripPlanningProfile) {
	if s.seeds == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.seeds.Set(ctx, SeedKeyPrefix+conversationID, raw, s.seedTTL).Err(); err != nil {
		s.logger.Warn("failed to cache concierge seed", map[string]interface{}{"error": err.Error()})
	}
}

// WelcomeMessage is the concierge's first message in a seeded conversation.
func WelcomeMessage(p *models.TripPlanningProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi! I'm %s, your travel concierge. ", p.AgentName)
	fmt.Fprintf(&b, "I see you're planning a %s trip to %s", p.TravelType, joinList(p.Destinations))
	if p.TripDuration != "" {
		fmt.Fprintf(&b, " for %s", p.TripDuration)
	}
	fmt.Fprintf(&b, " on a %s budget.", p.BudgetTier)
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, " I'll keep your interest in %s in mind.", joinList(p.Interests))
	}
	b.WriteString(" Where would you like to start?")
	return b.String()
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}

// dedupe trims entries and drops blanks and case-insensitive repeats.
func dedupe(items []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		key := strings.ToLower(it)
		if it == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
