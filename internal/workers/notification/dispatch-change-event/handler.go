// internal/workers/notification/dispatch-change-event/handler.go
package dispatchchangeevent

import (
	"context"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/common/validation"
	"notification-workers/internal/models"
	"notification-workers/internal/notification/dispatcher"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = validation.DispatchTaskType
)

// Dispatcher is implemented by *dispatcher.Dispatcher.
type Dispatcher interface {
	Handle(ctx context.Context, event models.ChangeEvent) dispatcher.Report
}

type Handler struct {
	config     *Config
	dispatcher Dispatcher
	errHandler *errors.Handler
	logger     logger.Logger
}

func NewHandler(config *Config, d Dispatcher, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		dispatcher: d,
		errHandler: errors.NewHandler(l),
		logger:     l,
	}
}

// Handle dispatches the change event carried in the job variables. Only an
// undecodable envelope fails the job; dispatch outcomes always complete it.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, job.Variables)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, variables string) (*Output, error) {
	event, err := validation.DecodeChangeEvent([]byte(variables))
	if err != nil {
		return nil, err
	}

	report := h.dispatcher.Handle(ctx, event)

	return &Output{
		InvocationID:     report.InvocationID,
		Status:           report.Outcome,
		NotificationType: report.NotificationType,
		Recipients:       len(report.Direct),
		Topics:           len(report.Topics),
		DispatchedAt:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}
