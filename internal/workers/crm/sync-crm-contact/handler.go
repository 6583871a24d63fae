// internal/workers/crm/sync-crm-contact/handler.go
package synccrmcontact

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
)

const (
	TaskType = "sync-crm-contact"
)

// ContactSyncer is implemented by crm.Syncer.
type ContactSyncer interface {
	Sync(ctx context.Context, order *models.Order) (string, bool, error)
}

type Handler struct {
	config *Config
	syncer ContactSyncer
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, syncer ContactSyncer, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 20 * time.Second
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		syncer: syncer,
		errors: apperrors.NewErrorHandler(l),
		logger: l,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Order.Contact.Email == "" {
		return nil, apperrors.NewValidationFailedError(map[string]string{"email": "Customer email is required for CRM sync"})
	}
	id, created, err := h.syncer.Sync(ctx, &input.Order)
	if err != nil {
		return nil, apperrors.NewCRMSyncFailedError(err)
	}
	return &Output{CRMContactID: id, Created: created}, nil
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
		"jobKey":    job.Key,
		"contactId": output.CRMContactID,
		"created":   output.Created,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
