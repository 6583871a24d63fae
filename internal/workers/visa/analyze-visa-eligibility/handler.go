// internal/workers/visa/analyze-visa-eligibility/handler.go
package analyzevisaeligibility

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
	TaskType = "analyze-visa-eligibility"
)

// Evaluator is implemented by visa.Evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, q *models.VisaEligibilityQuery) (*models.EligibilityResult, error)
}

type Handler struct {
	config    *Config
	evaluator Evaluator
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, evaluator Evaluator, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 45 * time.Second
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		evaluator: evaluator,
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

// execute returns the evaluator's error as-is so analysis failures keep their
// retry budget; the partial "error" result is only meant for the web form.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.evaluator.Evaluate(ctx, &input.VisaEligibilityQuery)
	if err != nil {
		return nil, err
	}
	return &Output{
		EligibilityType: string(res.Type),
		ShowPackages:    res.ShowPackages,
		Analysis:        res.Analysis,
		Tips:            res.Tips,
		Alternative:     res.Alternative,
		VisaCategory:    res.VisaCategory,
		Source:          string(res.Source),
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
		"jobKey":          job.Key,
		"eligibilityType": output.EligibilityType,
		"source":          output.Source,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
