// internal/workers/booking/validate-booking-data/handler.go
package validatebookingdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"travel-concierge/internal/booking"
	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/validation"
)

const (
	TaskType = "validate-booking-data"
)

// Handler re-checks a booking submitted through the workflow with the same rules
// the wizard applies, and resolves plan and add-ons against the catalogue.
type Handler struct {
	config    *Config
	validator *booking.Validator
	catalogue *booking.Catalogue
	schema    *validation.SchemaValidator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, v *booking.Validator, catalogue *booking.Catalogue, log logger.Logger) (*Handler, error) {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if catalogue == nil {
		catalogue = booking.DefaultCatalogue()
	}
	h := &Handler{
		config:    config,
		validator: v,
		catalogue: catalogue,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
	h.errors = apperrors.NewErrorHandler(h.logger)

	if config.InputSchema != nil {
		schema, err := validation.NewSchemaValidator(config.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("%s input schema: %w", TaskType, err)
		}
		h.schema = schema
	}
	return h, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.CheckPayload(job.Variables); err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

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

// CheckPayload validates raw job variables against the activity schema.
func (h *Handler) CheckPayload(raw string) error {
	if h.schema == nil {
		return nil
	}
	result, err := h.schema.ValidateJSON(raw)
	if err != nil {
		return apperrors.NewInvalidPayloadError(err.Error())
	}
	if !result.Valid {
		return apperrors.NewValidationFailedError(result.Fields())
	}
	return nil
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	form := booking.NewFormState("", "", h.catalogue)
	form.SetContact(input.Contact)
	form.SetTrip(input.Trip)

	fields := map[string]string{}
	if input.PlanID != "" {
		if err := form.SelectPlan(input.PlanID); err != nil {
			fields[booking.FieldPlan] = "Please choose one of the available plans"
		}
	}
	for _, sel := range input.SelectedAddOns {
		if err := form.SetAddOnQuantity(sel.AddOnID, sel.Quantity); err != nil {
			fields["addOns."+sel.AddOnID] = addOnMessage(err)
		}
	}

	flow := booking.FlowByName(input.Flow)
	for k, msg := range flow.Validate(&form.Draft, h.validator) {
		if _, seen := fields[k]; !seen {
			fields[k] = msg
		}
	}
	if len(fields) > 0 {
		h.logger.Info("booking rejected", map[string]interface{}{"fields": len(fields)})
		return nil, apperrors.NewValidationFailedError(fields)
	}

	draft := form.Snapshot()
	return &Output{
		Valid:       true,
		Draft:       draft,
		AddonsTotal: draft.AddonsTotal(),
		TotalAmount: draft.TotalAmount(),
	}, nil
}

func addOnMessage(err error) string {
	if errors.Is(err, booking.ErrUnknownAddOn) {
		return "This add-on is not available"
	}
	return "Quantity is out of range"
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
		"jobKey":      job.Key,
		"totalAmount": output.TotalAmount,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
