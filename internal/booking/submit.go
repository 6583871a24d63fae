package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/metrics"
	"travel-concierge/internal/models"
	"travel-concierge/internal/store"
)

// OrderStore persists orders. InsertOrder must return an error matching
// store.ErrDuplicateKey when the idempotency key is already used.
type OrderStore interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
}

// KeyReserver guards a submission against concurrent duplicates. Reserve
// reports the bound order id when the key already completed, and
// reserved=false with an empty id while another submission holds it.
type KeyReserver interface {
	Reserve(ctx context.Context, key string) (orderID string, reserved bool, err error)
	Bind(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// PaymentGateway opens a payment for the order and returns its reference.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, order *models.Order) (string, error)
}

// Effect is a best-effort action run after the order is stored.
type Effect interface {
	Name() string
	Apply(ctx context.Context, order *models.Order) error
}

type SubmissionRecorder interface {
	RecordSubmission(ctx context.Context, outcome string, duration time.Duration)
}

type SubmitterConfig struct {
	Currency      string
	EffectTimeout time.Duration
}

type SubmitterDeps struct {
	Validator *Validator
	Orders    OrderStore
	Keys      KeyReserver
	Payments  PaymentGateway
	Effects   []Effect
	Recorder  SubmissionRecorder
	Clock     clockwork.Clock
}

// SubmitResult is the stored order. Replayed is set when the idempotency key
// had already produced it.
type SubmitResult struct {
	Order    *models.Order
	Replayed bool
}

// Submitter turns a reviewed draft into an order. Persistence is blocking;
// every Effect runs detached with its own timeout and its failure is only logged.
type Submitter struct {
	cfg    SubmitterConfig
	deps   SubmitterDeps
	logger logger.Logger
	wg     sync.WaitGroup
}

func NewSubmitter(cfg SubmitterConfig, deps SubmitterDeps, log logger.Logger) *Submitter {
	if cfg.EffectTimeout <= 0 {
		cfg.EffectTimeout = 15 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Submitter{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "submitter"}),
	}
}

func (s *Submitter) Submit(ctx context.Context, form *FormState, seq *Sequencer, key string) (*SubmitResult, error) {
	start := s.deps.Clock.Now()

	result, outcome, err := s.submit(ctx, form, seq, key)

	metrics.BookingSubmissions.WithLabelValues(outcome).Inc()
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordSubmission(ctx, outcome, s.deps.Clock.Since(start))
	}
	return result, err
}

func (s *Submitter) submit(ctx context.Context, form *FormState, seq *Sequencer, key string) (*SubmitResult, string, error) {
	if seq.Current().ID != StepReview {
		return nil, "invalid", ErrNotOnReview
	}
	if fields := seq.Flow().Validate(&form.Draft, s.deps.Validator); len(fields) > 0 {
		return nil, "invalid", &StepError{Step: StepReview, Fields: fields}
	}

	key = scopedKey(form.SessionID, key)
	log := s.logger.WithFields(map[string]interface{}{"sessionId": form.SessionID, "idempotencyKey": key})

	reserved := s.deps.Keys != nil
	if reserved {
		existingID, ok, err := s.deps.Keys.Reserve(ctx, key)
		switch {
		case err != nil:
			// the unique constraint on orders still rejects a duplicate
			log.Warn("idempotency reservation unavailable", map[string]interface{}{"error": err.Error()})
			reserved = false
		case !ok && existingID == "":
			return nil, "in_flight", apperrors.NewSubmissionInFlightError(key)
		case !ok:
			order, err := s.deps.Orders.GetOrder(ctx, existingID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, "insert_failed", apperrors.NewOrderNotFoundError(existingID)
			}
			if err != nil {
				return nil, "insert_failed", apperrors.NewDatabaseQueryFailedError("get_order", err)
			}
			return s.replay(seq, form, order, log)
		}
	}

	order := s.buildOrder(form, key)

	if s.deps.Payments != nil {
		ref, err := s.deps.Payments.CreateIntent(ctx, order)
		if err != nil {
			s.release(ctx, key, reserved, log)
			log.Error("payment intent failed", map[string]interface{}{"error": err.Error()})
			return nil, "payment_failed", apperrors.NewPaymentFailedError(err)
		}
		order.PaymentRef = ref
	}

	if err := s.deps.Orders.InsertOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			existing, getErr := s.deps.Orders.GetOrderByIdempotencyKey(ctx, key)
			if getErr == nil {
				if existing.SessionID != form.SessionID {
					s.release(ctx, key, reserved, log)
				} else if reserved {
					_ = s.deps.Keys.Bind(ctx, key, existing.ID)
				}
				return s.replay(seq, form, existing, log)
			}
		}
		s.release(ctx, key, reserved, log)
		log.Error("order insert failed", map[string]interface{}{"error": err.Error()})
		return nil, "insert_failed", apperrors.NewOrderInsertFailedError(err)
	}

	if reserved {
		if err := s.deps.Keys.Bind(ctx, key, order.ID); err != nil {
			log.Warn("failed to bind idempotency key", map[string]interface{}{"orderId": order.ID, "error": err.Error()})
		}
	}

	if err := seq.Complete(); err != nil {
		return nil, "invalid", err
	}

	log.Info("order submitted", map[string]interface{}{
		"orderId":     order.ID,
		"totalAmount": order.TotalAmount,
		"currency":    order.Currency,
	})

	s.dispatch(order)

	return &SubmitResult{Order: order}, "created", nil
}

func (s *Submitter) buildOrder(form *FormState, key string) *models.Order {
	draft := form.Snapshot()
	order := &models.Order{
		ID:             uuid.NewString(),
		IdempotencyKey: key,
		SessionID:      form.SessionID,
		UserID:         form.UserID,
		Contact:        draft.Contact,
		Trip:           draft.Trip,
		AddOns:         draft.SelectedAddOns,
		AddonsTotal:    draft.AddonsTotal(),
		TotalAmount:    draft.TotalAmount(),
		Currency:       s.cfg.Currency,
		Status:         models.OrderStatusSubmitted,
		CreatedAt:      s.deps.Clock.Now().UTC(),
	}
	if draft.SelectedPlan != nil {
		order.Plan = *draft.SelectedPlan
	}
	return order
}

// replay answers a repeated submission with the order it already produced.
// An order from another session is never handed out.
func (s *Submitter) replay(seq *Sequencer, form *FormState, order *models.Order, log logger.Logger) (*SubmitResult, string, error) {
	if order.SessionID != form.SessionID {
		log.Warn("idempotency key bound to another session", map[string]interface{}{"orderId": order.ID})
		return nil, "conflict", apperrors.NewIdempotencyKeyReusedError(order.IdempotencyKey)
	}
	if seq.Current().ID == StepReview {
		_ = seq.Complete()
	}
	return &SubmitResult{Order: order, Replayed: true}, "replayed", nil
}

// scopedKey confines a client idempotency key to the wizard session that sent it.
func scopedKey(sessionID, key string) string {
	return sessionID + ":" + key
}

func (s *Submitter) release(ctx context.Context, key string, reserved bool, log logger.Logger) {
	if !reserved {
		return
	}
	if err := s.deps.Keys.Release(ctx, key); err != nil {
		log.Warn("failed to release idempotency key", map[string]interface{}{"error": err.Error()})
	}
}

// dispatch runs every effect on its own goroutine with a detached context.
func (s *Submitter) dispatch(order *models.Order) {
	for _, effect := range s.deps.Effects {
		effect := effect
		snapshot := *order
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.EffectTimeout)
			defer cancel()

			if err := effect.Apply(ctx, &snapshot); err != nil {
				metrics.BackgroundEffects.WithLabelValues(effect.Name(), "failed").Inc()
				s.logger.Warn("background effect failed", map[string]interface{}{
					"effect":  effect.Name(),
					"orderId": snapshot.ID,
					"error":   err.Error(),
				})
				return
			}
			metrics.BackgroundEffects.WithLabelValues(effect.Name(), "ok").Inc()
		}()
	}
}

// Wait blocks until every dispatched effect has finished.
func (s *Submitter) Wait() {
	s.wg.Wait()
}
