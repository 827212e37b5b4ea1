// Package errors provides the assistant's error taxonomy and its mapping onto
// workflow-engine failures.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode is a stable, machine-readable failure identifier.
type ErrorCode string

const (
	ErrCodeClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodeExtractionFailed     ErrorCode = "EXTRACTION_FAILED"
	ErrCodeClarificationNeeded  ErrorCode = "CLARIFICATION_NEEDED"
	ErrCodeHandlerFailed        ErrorCode = "HANDLER_FAILED"
	ErrCodeIdentityUnresolved   ErrorCode = "IDENTITY_UNRESOLVED"
	ErrCodeCompletionFailed     ErrorCode = "COMPLETION_FAILED"
	ErrCodeCompletionTimeout    ErrorCode = "COMPLETION_TIMEOUT"
	ErrCodeAgentContextFailed   ErrorCode = "AGENT_CONTEXT_FAILED"
	ErrCodeDocumentStoreFailed  ErrorCode = "DOCUMENT_STORE_FAILED"
	ErrCodeDocumentNotFound     ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeCalendarFailed       ErrorCode = "CALENDAR_FAILED"
	ErrCodeSearchFailed         ErrorCode = "SEARCH_FAILED"
	ErrCodeNotificationFailed   ErrorCode = "NOTIFICATION_FAILED"
	ErrCodeInvalidInput         ErrorCode = "INVALID_INPUT"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the canonical error shape carried across component
// boundaries and into job failure variables.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// New creates a StandardError whose retryability follows the retry table.
func New(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap creates a StandardError around cause. A nil cause yields nil.
func Wrap(code ErrorCode, message string, cause error) *StandardError {
	if cause == nil {
		return nil
	}
	e := New(code, message, cause.Error())
	e.cause = cause
	return e
}

func NewClarificationNeededError(details string) *StandardError {
	return New(ErrCodeClarificationNeeded, "More detail is needed to complete the request", details)
}

func NewIdentityUnresolvedError(details string) *StandardError {
	return New(ErrCodeIdentityUnresolved, "No family identity could be resolved", details)
}

func NewHandlerFailedError(intent string, cause error) *StandardError {
	e := Wrap(ErrCodeHandlerFailed, "Action handler failed", cause)
	if e == nil {
		e = New(ErrCodeHandlerFailed, "Action handler failed", "")
	}
	return e.WithMetadata("intent", intent)
}

func NewCompletionTimeoutError(details string) *StandardError {
	return New(ErrCodeCompletionTimeout, "Completion service timed out", details)
}

func NewInvalidInputError(details string) *StandardError {
	return New(ErrCodeInvalidInput, "Invalid input", details)
}

// AsStandardError extracts a StandardError from err's chain, or wraps err as
// an internal error.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var std *StandardError
	if errors.As(err, &std) {
		return std
	}
	return Wrap(ErrCodeInternal, "Unexpected error", err)
}

// CodeOf returns the code of err, or ErrCodeInternal when err carries none.
func CodeOf(err error) ErrorCode {
	var std *StandardError
	if errors.As(err, &std) {
		return std.Code
	}
	return ErrCodeInternal
}

// BPMNError is the shape thrown back to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the job fail variables for e.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// BPMNErrorMapping maps internal codes to the error codes modelled in BPMN
// boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeClassificationFailed: "ASSISTANT_CLASSIFICATION_FAILED",
	ErrCodeExtractionFailed:     "ASSISTANT_EXTRACTION_FAILED",
	ErrCodeClarificationNeeded:  "ASSISTANT_CLARIFICATION_NEEDED",
	ErrCodeHandlerFailed:        "ASSISTANT_HANDLER_FAILED",
	ErrCodeIdentityUnresolved:   "ASSISTANT_UNAUTHENTICATED",
	ErrCodeCompletionFailed:     "LLM_COMPLETION_FAILED",
	ErrCodeCompletionTimeout:    "LLM_TIMEOUT",
	ErrCodeAgentContextFailed:   "KNOWLEDGE_GRAPH_FAILED",
	ErrCodeDocumentStoreFailed:  "DOCUMENT_STORE_FAILED",
	ErrCodeDocumentNotFound:     "DOCUMENT_NOT_FOUND",
	ErrCodeCalendarFailed:       "CALENDAR_FAILED",
	ErrCodeSearchFailed:         "SEARCH_QUERY_FAILED",
	ErrCodeNotificationFailed:   "NOTIFICATION_SEND_FAILED",
	ErrCodeInvalidInput:         "INVALID_INPUT",
}

// GetRetryCount returns the recommended job retry budget for code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDocumentStoreFailed,
		ErrCodeCalendarFailed,
		ErrCodeSearchFailed,
		ErrCodeNotificationFailed,
		ErrCodeCompletionFailed:
		return 3
	case ErrCodeCompletionTimeout,
		ErrCodeAgentContextFailed:
		return 2
	case ErrCodeClassificationFailed:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, ok := BPMNErrorMapping[stdErr.Code]
	if !ok {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// IsRetryableErrorCode reports whether code has a non-zero retry budget.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for dashboards and log filtering.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "IDENTITY"):
		return "AUTH"
	case strings.Contains(codeStr, "CLASSIFICATION"),
		strings.Contains(codeStr, "EXTRACTION"),
		strings.Contains(codeStr, "COMPLETION"),
		strings.Contains(codeStr, "AGENT"):
		return "AI"
	case strings.Contains(codeStr, "DOCUMENT"), strings.Contains(codeStr, "CALENDAR"):
		return "STORAGE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"), strings.Contains(codeStr, "CLARIFICATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "HANDLER"):
		return "ACTION"
	default:
		return "OTHER"
	}
}
