// internal/workers/booking/send-booking-notification/handler.go
package sendbookingnotification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "travel-concierge/internal/common/errors"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/models"
	"travel-concierge/internal/notify"
)

const (
	TaskType = "send-booking-notification"
)

// Sender is implemented by notify.Notifier.
type Sender interface {
	Send(ctx context.Context, note models.BookingNotification) (*notify.Result, error)
}

type Handler struct {
	config *Config
	sender Sender
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, sender Sender, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		sender: sender,
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
	note := input.Notification
	if note.OrderID == "" {
		note.OrderID = input.OrderID
	}
	if note.OrderID == "" {
		return nil, apperrors.NewInvalidPayloadError("orderId is required")
	}

	res, err := h.sender.Send(ctx, note)
	if err != nil {
		channel := "email"
		if res != nil && res.FailedChannel != "" {
			channel = res.FailedChannel
		}
		return nil, apperrors.NewNotificationSendFailedError(channel, err)
	}
	return &Output{
		NotificationStatus: res.Status,
		EmailSent:          res.EmailSent,
		SMSSent:            res.SMSSent,
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
		"jobKey": job.Key,
		"status": output.NotificationStatus,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
