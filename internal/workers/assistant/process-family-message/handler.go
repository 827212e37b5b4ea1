package processfamilymessage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"family-assistant/internal/assistant"
	"family-assistant/internal/common/camunda"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "process-family-message"

type MessageHandler interface {
	HandleMessage(ctx context.Context, message string, fc *models.FamilyContext) *assistant.Reply
}

type Handler struct {
	config    *Config
	assistant MessageHandler
	logger    logger.Logger
}

func NewHandler(cfg *Config, svc MessageHandler, log logger.Logger) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	return &Handler{
		config:    cfg,
		assistant: svc,
		logger:    log.With(map[string]interface{}{"taskType": TaskType}),
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing family message", map[string]interface{}{
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

// Execute handles one message. Assistant failures are reported in the
// output; only an expired deadline is returned as an error so the engine
// can retry.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	fc := input.FamilyContext
	if fc == nil {
		fc = &models.FamilyContext{}
	}
	if input.FamilyID != "" {
		fc.FamilyID = input.FamilyID
	}
	if input.UserID != "" && fc.UserID() == "" {
		fc.CurrentUser = currentUser(fc, input.UserID)
	}

	start := time.Now()
	reply := h.assistant.HandleMessage(ctx, input.Message, fc)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, apperrors.NewCompletionTimeoutError(fmt.Sprintf("message not handled within %s", h.config.Timeout))
	}

	output := &Output{
		Reply:          reply.Text,
		Success:        reply.Success,
		Route:          reply.Route,
		Intent:         reply.Intent,
		ActionType:     reply.ActionType,
		Data:           reply.Data,
		ErrorCode:      errorCode(reply.Error),
		RecentMessages: fc.RecentMessages,
	}

	h.logger.Info("Family message processed", map[string]interface{}{
		"familyId":   fc.FamilyID,
		"route":      output.Route,
		"intent":     output.Intent,
		"success":    output.Success,
		"errorCode":  output.ErrorCode,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return output, nil
}

func currentUser(fc *models.FamilyContext, userID string) *models.FamilyMember {
	for _, m := range fc.FamilyMembers {
		if m.ID == userID {
			member := m
			return &member
		}
	}
	return &models.FamilyMember{ID: userID}
}

var codePrefix = regexp.MustCompile(`^([A-Z][A-Z_]+):`)

// errorCode extracts the leading error code of a reply's diagnostic text.
func errorCode(detail string) string {
	if detail == "" {
		return ""
	}
	if m := codePrefix.FindStringSubmatch(detail); m != nil {
		return m[1]
	}
	return string(apperrors.ErrCodeInternal)
}
