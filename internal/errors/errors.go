package errors

import (
	"fmt"
	"net/http"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation  = "E100"
	CodeStorage     = "E200"
	CodeExternalAPI = "E300"
	CodeState       = "E400"
	CodeRateLimit   = "E500"
	CodeCapacity    = "E600"
)

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	// StatusCode is the remote HTTP status for E300 errors, 0 for network failures.
	StatusCode int
	cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// Type returns a metrics-friendly label for the error code.
func (e *AppError) Type() string {
	if e == nil {
		return "unknown"
	}

	switch e.Code {
	case CodeValidation:
		return "validation"
	case CodeStorage:
		return "storage"
	case CodeExternalAPI:
		return "external_api"
	case CodeState:
		return "state"
	case CodeRateLimit:
		return "rate_limit"
	case CodeCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Неверный формат данных. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewStorageError wraps a failure of the local JSON files.
func NewStorageError(op string, cause error) *AppError {
	return &AppError{
		Code:        CodeStorage,
		Message:     fmt.Sprintf("storage error: %s", op),
		UserMessage: "Временная проблема, попробуйте позже",
		Severity:    SeverityHigh,
		Retryable:   false,
		cause:       cause,
	}
}

// NewExternalAPIError wraps a failed website call. Network failures (status 0),
// 5xx and 429 responses are retryable.
func NewExternalAPIError(apiName string, status int, cause error) *AppError {
	msg := fmt.Sprintf("external API error: %s", apiName)
	if status != 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, status)
	}

	return &AppError{
		Code:        CodeExternalAPI,
		Message:     msg,
		UserMessage: "Сервис временно недоступен",
		Severity:    SeverityMedium,
		Retryable:   status == 0 || status >= http.StatusInternalServerError || status == http.StatusTooManyRequests,
		StatusCode:  status,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "Операция невозможна в текущем состоянии",
		Severity:    SeverityMedium,
		Retryable:   false,
		cause:       nil,
	}
}

// NewRateLimitError reports a throttled update; retryAfter is in seconds.
func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Слишком много запросов. Попробуйте через %d секунд", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewCapacityError reports that max_users has been reached.
func NewCapacityError(limit int) *AppError {
	return &AppError{
		Code:        CodeCapacity,
		Message:     fmt.Sprintf("user limit reached: %d", limit),
		UserMessage: "К сожалению, регистрация временно закрыта: достигнут лимит участников.",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}
