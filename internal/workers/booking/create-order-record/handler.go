// internal/workers/booking/create-order-record/handler.go
package createorderrecord

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"travel-concierge/internal/booking"
	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
	"travel-concierge/internal/store"
)

const (
	TaskType = "create-order-record"
)

// OrderWriter is implemented by store.OrderStore.
type OrderWriter interface {
	InsertOrder(ctx context.Context, o *models.Order) error
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
}

type Handler struct {
	config    *Config
	orders    OrderWriter
	catalogue *booking.Catalogue
	clock  clockwork.Clock
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, orders OrderWriter, catalogue *booking.Catalogue, clock clockwork.Clock, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.Currency == "" {
		config.Currency = "usd"
	}
	if catalogue == nil {
		catalogue = booking.DefaultCatalogue()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		orders:    orders,
		catalogue: catalogue,
		clock:     clock,
		errors:    apperrors.NewErrorHandler(l),
		logger:    l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(ctx, client, job, apperrors.NewInvalidPayloadError(err.Error()))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// execute stores the order once per idempotency key. A key that is already
// stored returns the existing order instead of failing the job, so a retried
// job lands on the same record.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	order := input.Order
	if input.IdempotencyKey != "" {
		order.IdempotencyKey = input.IdempotencyKey
	}
	if order.IdempotencyKey == "" {
		return nil, apperrors.NewInvalidPayloadError("idempotencyKey is required")
	}
	if order.Contact.Email == "" || order.Plan.ID == "" {
		return nil, apperrors.NewDraftIncompleteError("review")
	}
	if err := h.reprice(&order); err != nil {
		return nil, err
	}

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Currency == "" {
		order.Currency = h.config.Currency
	}
	if order.Status == "" {
		order.Status = models.OrderStatusSubmitted
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = h.clock.Now().UTC()
	}

	err := h.orders.InsertOrder(ctx, &order)
	if errors.Is(err, store.ErrDuplicateKey) {
		existing, getErr := h.orders.GetOrderByIdempotencyKey(ctx, order.IdempotencyKey)
		if getErr != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("get_order_by_idempotency_key", getErr)
		}
		h.logger.Info("order already stored", map[string]interface{}{
			"orderId":        existing.ID,
			"idempotencyKey": order.IdempotencyKey,
		})
		return outputFor(existing, true), nil
	}
	if err != nil {
		return nil, apperrors.NewOrderInsertFailedError(err)
	}

	return outputFor(&order, false), nil
}

// reprice replaces the plan, add-ons and totals on the order with catalogue
// values. Prices carried in the job variables are never stored.
func (h *Handler) reprice(order *models.Order) error {
	form := booking.NewFormState("", "", h.catalogue)
	fields := map[string]string{}
	if err := form.SelectPlan(order.Plan.ID); err != nil {
		fields[booking.FieldPlan] = "Unknown plan"
	}
	for _, sel := range order.AddOns {
		if err := form.SetAddOnQuantity(sel.AddOn.ID, sel.Quantity); err != nil {
			if errors.Is(err, booking.ErrUnknownAddOn) {
				fields["addOns."+sel.AddOn.ID] = "Unknown add-on"
			} else {
				fields["addOns."+sel.AddOn.ID] = "Quantity is out of range"
			}
		}
	}
	if len(fields) > 0 {
		return apperrors.NewValidationFailedError(fields)
	}

	draft := form.Snapshot()
	if order.AddonsTotal != draft.AddonsTotal() || order.TotalAmount != draft.TotalAmount() {
		h.logger.Warn("order totals recomputed", map[string]interface{}{
			"sentTotal":     order.TotalAmount,
			"computedTotal": draft.TotalAmount(),
		})
	}
	order.Plan = *draft.SelectedPlan
	order.AddOns = draft.SelectedAddOns
	order.AddonsTotal = draft.AddonsTotal()
	order.TotalAmount = draft.TotalAmount()
	return nil
}

func outputFor(o *models.Order, replayed bool) *Output {
	return &Output{
		OrderID:   o.ID,
		Replayed:  replayed,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":   job.Key,
		"orderId":  output.OrderID,
		"replayed": output.Replayed,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
