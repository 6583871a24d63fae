package concierge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	apperrors "travel-concierge/internal/common/errors"
	commonhttp "travel-concierge/internal/common/http"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
	"travel-concierge/internal/onboarding"
	"travel-concierge/internal/store"
)

// HistoryLimit is how many earlier messages go into each prompt.
const HistoryLimit = 10

const MaxMessageLength = 2000

const (
	msgTimeout     = "I'm taking a little longer than usual to think. Please try asking again in a moment."
	msgRateLimited = "I'm helping a lot of travelers right now. Please wait a few seconds and try again."
	msgUnavailable = "My travel knowledge service is having trouble at the moment. Please try again shortly."
	msgGeneric     = "Sorry, something went wrong while preparing my answer. Please try again."
)

type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*models.ChatConversation, error)
	AppendMessage(ctx context.Context, m *models.ChatMessage) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error)
}

type ProfileLookup interface {
	Get(ctx context.Context, id string) (*models.TripPlanningProfile, error)
}

type Config struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type Reply struct {
	UserMessage *models.ChatMessage `json:"userMessage"`
	Message     *models.ChatMessage `json:"message"`
	Confidence  float64             `json:"confidence"`
	Sources     []string            `json:"sources,omitempty"`
}

type Service struct {
	cfg           Config
	generator     Generator
	conversations ConversationStore
	profiles      ProfileLookup
	seeds         *redis.Client
	clock         clockwork.Clock
	logger        logger.Logger
}

func NewService(cfg Config, gen Generator, conversations ConversationStore, profiles ProfileLookup, seeds *redis.Client, clock clockwork.Clock, log logger.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		cfg:           cfg,
		generator:     gen,
		conversations: conversations,
		profiles:      profiles,
		seeds:         seeds,
		clock:         clock,
		logger:        log.WithFields(map[string]interface{}{"component": "concierge"}),
	}
}

// Reply stores the traveler's message, asks the model with the recent history
// and the seed profile, and stores the answer. A failed generation keeps the
// traveler's message and returns an error whose Message is safe to show.
func (s *Service) Reply(ctx context.Context, conversationID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationFailedError(map[string]string{"message": "Please type a message"})
	}
	if len(text) > MaxMessageLength {
		return nil, apperrors.NewValidationFailedError(map[string]string{"message": fmt.Sprintf("Messages are limited to %d characters", MaxMessageLength)})
	}

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewResourceNotFoundError("conversations", "conversationId: "+conversationID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get_conversation", err)
	}

	history, err := s.conversations.RecentMessages(ctx, conv.ID, HistoryLimit)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("recent_messages", err)
	}

	userMsg := &models.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        text,
		CreatedAt:      s.clock.Now().UTC(),
	}
	if err := s.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("append_message", err)
	}

	profile := s.seed(ctx, conv)
	req := &GenerateRequest{
		Prompt:      BuildPrompt(conv.AgentName, profile, history, text),
		Context:     promptContext(conv, profile),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.generator.Generate(genCtx, req)
	if err != nil {
		s.logger.Error("concierge generation failed", map[string]interface{}{
			"conversationId": conv.ID,
			"error":          err.Error(),
		})
		return &Reply{UserMessage: userMsg}, friendlyError(genCtx, err)
	}

	answer := &models.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        strings.TrimSpace(resp.Text),
		CreatedAt:      s.clock.Now().UTC(),
	}
	if err := s.conversations.AppendMessage(ctx, answer); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("append_message", err)
	}

	return &Reply{UserMessage: userMsg, Message: answer, Confidence: resp.Confidence, Sources: resp.Sources}, nil
}

// History returns the most recent messages of a conversation, oldest first.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	if _, err := s.conversations.GetConversation(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewResourceNotFoundError("conversations", "conversationId: "+conversationID)
		}
		return nil, apperrors.NewDatabaseQueryFailedError("get_conversation", err)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	msgs, err := s.conversations.RecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("recent_messages", err)
	}
	return msgs, nil
}

// seed reads the cached onboarding profile, falling back to the database.
func (s *Service) seed(ctx context.Context, conv *models.ChatConversation) *models.TripPlanningProfile {
	if s.seeds != nil {
		if raw, err := s.seeds.Get(ctx, onboarding.SeedKeyPrefix+conv.ID).Bytes(); err == nil {
			var p models.TripPlanningProfile
			if json.Unmarshal(raw, &p) == nil {
				return &p
			}
		}
	}
	if s.profiles == nil || conv.ProfileID == "" {
		return nil
	}
	p, err := s.profiles.Get(ctx, conv.ProfileID)
	if err != nil {
		s.logger.Warn("seed profile unavailable", map[string]interface{}{"profileId": conv.ProfileID, "error": err.Error()})
		return nil
	}
	return p
}

// BuildPrompt renders the persona, the traveler profile and the transcript.
func BuildPrompt(agentName string, p *models.TripPlanningProfile, history []models.ChatMessage, text string) string {
	if agentName == "" {
		agentName = "your travel concierge"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a friendly and knowledgeable travel concierge. Answer concisely and practically.\n", agentName)
	if p != nil {
		fmt.Fprintf(&b, "\nTraveler profile:\n- Trip type: %s, %d traveler(s)\n- Destinations: %s\n- Duration: %s\n- Budget: %s\n",
			p.TravelType, p.TravelerCount, strings.Join(p.Destinations, ", "), p.TripDuration, p.BudgetTier)
		if len(p.Interests) > 0 {
			fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(p.Interests, ", "))
		}
		if p.TravelStyle != "" {
			fmt.Fprintf(&b, "- Style: %s\n", p.TravelStyle)
		}
		if p.SpecialRequests != "" {
			fmt.Fprintf(&b, "- Special requests: %s\n", p.SpecialRequests)
		}
	}
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range history {
			speaker := "Traveler"
			if m.Role == models.RoleAssistant {
				speaker = agentName
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
		}
	}
	fmt.Fprintf(&b, "\nTraveler: %s\n%s:", text, agentName)
	return b.String()
}

func promptContext(conv *models.ChatConversation, p *models.TripPlanningProfile) map[string]interface{} {
	ctx := map[string]interface{}{"conversationId": conv.ID, "agentName": conv.AgentName}
	if p != nil {
		ctx["destinations"] = p.Destinations
		ctx["budgetTier"] = p.BudgetTier
		ctx["travelType"] = p.TravelType
	}
	return ctx
}

// friendlyError maps a generation failure onto a message for the traveler.
func friendlyError(ctx context.Context, err error) *apperrors.StandardError {
	var statusErr *commonhttp.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err):
		e := apperrors.NewConciergeTimeoutError()
		e.Message = msgTimeout
		return e
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests:
		e := apperrors.NewConciergeFailedError(err)
		e.Message = msgRateLimited
		return e
	case errors.As(err, &statusErr) && statusErr.StatusCode >= 500:
		e := apperrors.NewConciergeFailedError(err)
		e.Message = msgUnavailable
		return e
	}
	e := apperrors.NewConciergeFailedError(err)
	e.Message = msgGeneric
	return e
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
