// internal/workers/booking/index-order/handler.go
package indexorder

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
	TaskType = "index-order"
)

// Indexer is implemented by search.OrderIndex.
type Indexer interface {
	IndexOrder(ctx context.Context, order *models.Order) error
}

type Handler struct {
	config  *Config
	indexer Indexer
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, indexer Indexer, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		indexer: indexer,
		errors:  apperrors.NewErrorHandler(l),
		logger:  l,
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
	if input.Order.ID == "" {
		return nil, apperrors.NewInvalidPayloadError("order.id is required")
	}
	if err := h.indexer.IndexOrder(ctx, &input.Order); err != nil {
		return nil, apperrors.NewSearchIndexFailedError(err)
	}
	return &Output{Indexed: true, OrderID: input.Order.ID}, nil
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
		"jobKey":  job.Key,
		"orderId": output.OrderID,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
