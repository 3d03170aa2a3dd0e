package camunda

import (
	"context"
	"encoding/json"
	"time"

	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobFunc runs a job's business logic and returns the variables to complete it with.
type JobFunc func(ctx context.Context) (interface{}, error)

// HandleJob applies the per-job timeout, then completes the job or routes the error through ErrorHandler.
func HandleJob(client worker.JobClient, job entities.Job, timeout time.Duration, log logger.Logger, fn JobFunc) {
	log.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	output, err := fn(ctx)
	if err != nil {
		code := "INTERNAL_ERROR"
		if stdErr, ok := errors.AsStandard(err); ok {
			code = string(stdErr.Code)
		}
		metrics.WorkerJobsFailed.WithLabelValues(job.Type, code).Inc()
		errors.NewErrorHandler(log).HandleJobError(ctx, client, job, err)
		return
	}

	if err := CompleteJob(ctx, client, job, output); err != nil {
		log.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
}

// DecodeVariables unmarshals job variables into v.
func DecodeVariables(job entities.Job, v interface{}) error {
	if err := json.Unmarshal([]byte(job.Variables), v); err != nil {
		return errors.NewInvalidInputError("parse job variables: " + err.Error())
	}
	return nil
}

func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return err
	}
	_, err = cmd.Send(ctx)
	return err
}

// StartWorker opens a job worker for taskType unless it is disabled in config.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeoutMs":     wcfg.Timeout,
	})
	return jw
}
