package classifyfamilyintent

import (
	"context"
	"encoding/json"
	"fmt"

	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/common/camunda"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "classify-family-intent"

type Classifier interface {
	Classify(ctx context.Context, message string) intent.Resolution
	ClassifyActionType(ctx context.Context, message string) intent.ActionType
}

type Extractor interface {
	Extract(ctx context.Context, message string, t intent.Type, fc *models.FamilyContext) *models.EntityBundle
}

type Handler struct {
	config     *Config
	classifier Classifier
	extractor  Extractor
	logger     logger.Logger
}

// NewHandler builds the worker. extractor may be nil, in which case
// extraction requests are ignored.
func NewHandler(cfg *Config, classifier Classifier, extractor Extractor, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	return &Handler{
		config:     cfg,
		classifier: classifier,
		extractor:  extractor,
		logger:     log.With(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Classifying family message", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		camunda.FailJob(ctx, client, job, TaskType, err, h.logger)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		camunda.FailJob(ctx, client, job, TaskType, err, h.logger)
		return
	}
	camunda.CompleteJob(ctx, client, job, TaskType, output, h.logger)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	if _, err := camunda.ParseVariables(job, h.config.InputSchema); err != nil {
		return nil, err
	}
	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, "Failed to decode job variables", err)
	}
	return &input, nil
}

// Execute classifies the message on both axes. Classification degrades to
// unknown rather than failing, so the only error is a spent deadline.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res := h.classifier.Classify(ctx, input.Message)
	actionType := h.classifier.ClassifyActionType(ctx, input.Message)
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewCompletionTimeoutError(err.Error())
	}

	output := &Output{
		Intent:     string(res.Type),
		Confidence: res.Confidence,
		Source:     string(res.Source),
		Dampened:   res.Dampened,
		Actionable: res.Type.IsAction(),
		ActionType: string(actionType),
	}
	if input.ExtractEntities && h.extractor != nil && res.Type != intent.Unknown {
		output.Entities = h.extractor.Extract(ctx, input.Message, res.Type, input.FamilyContext)
	}

	h.logger.Info("Family message classified", map[string]interface{}{
		"intent":     output.Intent,
		"confidence": output.Confidence,
		"actionType": output.ActionType,
		"dampened":   output.Dampened,
	})
	return output, nil
}
