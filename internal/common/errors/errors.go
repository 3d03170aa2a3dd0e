// Package errors defines the error taxonomy of the message pipeline and its mapping to BPMN errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeUnsafeInput  ErrorCode = "UNSAFE_INPUT"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"

	ErrCodeGenerationFailed       ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout      ErrorCode = "GENERATION_TIMEOUT"
	ErrCodeGeneratorUnavailable   ErrorCode = "GENERATOR_UNAVAILABLE"
	ErrCodeInvalidGeneratorOutput ErrorCode = "INVALID_GENERATOR_OUTPUT"

	ErrCodeRetrievalFailed  ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeRetrievalTimeout ErrorCode = "RETRIEVAL_TIMEOUT"

	ErrCodePersistenceFailed        ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeCRMSyncFailed            ErrorCode = "CRM_SYNC_FAILED"
)

// StandardError is the structured error carried across workers.
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// BPMNError is thrown to the workflow engine.
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

// ToErrorVariables returns the variables attached to a failed or thrown job.
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

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false, nil)
}

// NewUnsafeInputError is the only error surfaced to the caller as a rejection.
func NewUnsafeInputError(categories []string) *StandardError {
	e := newError(ErrCodeUnsafeInput, "Message rejected by security guardrail",
		strings.Join(categories, ","), false, nil)
	e.Metadata = map[string]interface{}{"categories": categories}
	return e
}

func NewRateLimitedError(actorID string, resetAt time.Time) *StandardError {
	e := newError(ErrCodeRateLimited, "Actor exceeded generator request budget",
		fmt.Sprintf("actor: %s", actorID), true, nil)
	e.Metadata = map[string]interface{}{"resetAt": resetAt.UTC().Format(time.RFC3339)}
	return e
}

func NewGenerationError(operation string, err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Generative backend call failed",
		fmt.Sprintf("operation: %s, error: %s", operation, errDetails(err)), true, err)
}

func NewGenerationTimeoutError(operation string, timeout time.Duration) *StandardError {
	return newError(ErrCodeGenerationTimeout, "Generative backend call timed out",
		fmt.Sprintf("operation: %s, timeout: %s", operation, timeout), true, nil)
}

func NewGeneratorUnavailableError() *StandardError {
	return newError(ErrCodeGeneratorUnavailable, "No generative backend configured", "", false, nil)
}

func NewInvalidGeneratorOutputError(details string) *StandardError {
	return newError(ErrCodeInvalidGeneratorOutput, "Generator output failed schema validation", details, false, nil)
}

func NewRetrievalError(source string, err error) *StandardError {
	return newError(ErrCodeRetrievalFailed, "Context retrieval failed",
		fmt.Sprintf("source: %s, error: %s", source, errDetails(err)), true, err)
}

func NewRetrievalTimeoutError(source string) *StandardError {
	return newError(ErrCodeRetrievalTimeout, "Context retrieval timed out",
		fmt.Sprintf("source: %s", source), true, nil)
}

func NewPersistenceError(operation string, err error) *StandardError {
	return newError(ErrCodePersistenceFailed, "Persistence operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, errDetails(err)), true, err)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", errDetails(err), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, errDetails(err)), true, err)
}

func NewCRMSyncFailedError(err error) *StandardError {
	return newError(ErrCodeCRMSyncFailed, "CRM lead sync failed", errDetails(err), true, err)
}

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeGenerationFailed,
		ErrCodeRetrievalFailed,
		ErrCodePersistenceFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeCRMSyncFailed:
		return 3
	case ErrCodeGenerationTimeout, ErrCodeRetrievalTimeout:
		return 2
	case ErrCodeRateLimited:
		return 1
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
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

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnsafeInput || code == ErrCodeRateLimited:
		return "SECURITY"
	case strings.HasPrefix(codeStr, "GENERAT") || code == ErrCodeInvalidGeneratorOutput:
		return "AI"
	case strings.HasPrefix(codeStr, "RETRIEVAL"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "PERSISTENCE"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "CRM"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
