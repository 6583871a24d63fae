// internal/workers/concierge/concierge-reply/handler.go
package conciergereply

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/concierge"
)

const (
	TaskType = "concierge-reply"
)

// Replier is implemented by concierge.Service.
type Replier interface {
	Reply(ctx context.Context, conversationID, text string) (*concierge.Reply, error)
}

type Handler struct {
	config  *Config
	replier Replier
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, replier Replier, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		replier: replier,
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
	if input.ConversationID == "" {
		return nil, apperrors.NewInvalidPayloadError("conversationId is required")
	}
	reply, err := h.replier.Reply(ctx, input.ConversationID, input.Message)
	if err != nil {
		return nil, err
	}
	return &Output{
		ReplyMessageID: reply.Message.ID,
		Reply:          reply.Message.Content,
		Confidence:     reply.Confidence,
		Sources:        reply.Sources,
	}, nil
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
		"messageId": output.ReplyMessageID,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
