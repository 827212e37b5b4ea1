package camunda

import (
	"context"
	"fmt"
	"strings"

	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/metrics"
	"family-assistant/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ParseVariables decodes the job variables and validates them against
// schema. Failures are INVALID_INPUT errors.
func ParseVariables(job entities.Job, schema map[string]interface{}) (map[string]interface{}, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, "Failed to parse job variables", err)
	}

	result, err := validation.ValidateInput(variables, schema)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Input schema could not be evaluated", err)
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return variables, nil
}

// CompleteJob completes job with variables.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, taskType string, variables interface{}, log logger.Logger) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(variables)
	if err != nil {
		log.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": taskType,
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		log.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": taskType,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
}

// FailJob reports err to the engine as a BPMN error with the retry budget
// of its code.
func FailJob(ctx context.Context, client worker.JobClient, job entities.Job, taskType string, err error, log logger.Logger) {
	stdErr := apperrors.AsStandardError(err)
	bpmnErr := apperrors.ConvertToBPMNError(stdErr)
	metrics.WorkerJobsFailed.WithLabelValues(taskType, string(stdErr.Code)).Inc()

	log.Error("Job failed", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"errorCode":    bpmnErr.Code,
		"errorMessage": bpmnErr.Message,
		"retryable":    bpmnErr.Retryable,
		"retries":      bpmnErr.Retries,
		"worker":       taskType,
	})

	failCmd := client.NewFailJobCommand().
		JobKey(job.GetKey()).
		Retries(int32(bpmnErr.Retries)).
		ErrorMessage(fmt.Sprintf("[%s] %s", bpmnErr.Code, bpmnErr.Message))

	var finalCmd interface {
		Send(context.Context) (*pb.FailJobResponse, error)
	} = failCmd
	if varCmd, varErr := failCmd.VariablesFromMap(bpmnErr.ToErrorVariables()); varErr == nil {
		finalCmd = varCmd
	} else {
		log.Warn("Failed to set error variables, sending without them", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  varErr.Error(),
			"worker": taskType,
		})
	}

	if _, sendErr := finalCmd.Send(ctx); sendErr != nil {
		log.Error("Failed to send job failure", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  sendErr.Error(),
			"worker": taskType,
		})
	}
}
