package neutralizemessage

import (
	"context"
	"encoding/json"
	"fmt"

	"family-assistant/internal/assistant/neutralvoice"
	"family-assistant/internal/common/camunda"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "neutralize-message"

type Neutralizer interface {
	Neutralize(text string, c neutralvoice.Context) string
}

type Handler struct {
	config *Config
	voice  Neutralizer
	logger logger.Logger
}

func NewHandler(cfg *Config, voice Neutralizer, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	return &Handler{
		config: cfg,
		voice:  voice,
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		camunda.FailJob(ctx, client, job, TaskType, err, h.logger)
		return
	}
	camunda.CompleteJob(ctx, client, job, TaskType, h.Execute(input), h.logger)
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

// Execute rewrites the text and scores it before and after.
func (h *Handler) Execute(input *Input) *Output {
	neutral := h.voice.Neutralize(input.Text, neutralvoice.Context{
		Person: input.Person,
		Task:   input.Task,
		Role:   input.Role,
	})
	output := &Output{
		NeutralText: neutral,
		Changed:     neutral != input.Text,
		Before:      neutralvoice.MessageNeutrality(input.Text),
		After:       neutralvoice.MessageNeutrality(neutral),
	}

	h.logger.Info("Message neutralized", map[string]interface{}{
		"changed":     output.Changed,
		"scoreBefore": output.Before.Score,
		"scoreAfter":  output.After.Score,
		"severity":    string(output.Before.Severity),
	})
	return output
}
