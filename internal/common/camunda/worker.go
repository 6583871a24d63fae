// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"travel-concierge/internal/common/config"
	"travel-concierge/internal/common/logger"
	"travel-concierge/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// HandlerFunc is the signature every task handler exposes as Handle.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// JobRecorder receives one duration sample per handled job.
type JobRecorder interface {
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration)
}

// StartWorker opens a job worker for taskType and instruments every job with the
// worker metrics. It returns nil when the worker is disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handle HandlerFunc, rec JobRecorder, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(instrument(taskType, handle, rec)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jobWorker
}

func instrument(taskType string, handle HandlerFunc, rec JobRecorder) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		start := time.Now()
		defer func() {
			elapsed := time.Since(start)
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if rec != nil {
				rec.RecordJobDuration(context.Background(), taskType, elapsed)
			}
		}()
		handle(client, job)
	}
}
