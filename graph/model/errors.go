package model

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Provider error codes.
const (
	CodeMissingAPIKey = "missing_api_key"
	CodeInvalidAPIKey = "invalid_api_key"
	CodeRateLimited   = "rate_limited"
	CodeQuotaExceeded = "quota_exceeded"
	CodeTimeout       = "timeout"
	CodeServerError   = "server_error"
	CodeNetwork       = "network_error"
	CodeBlocked       = "content_blocked"
	CodeEmpty         = "empty_response"
	CodeAPIError      = "api_error"
)

// ProviderError is a classified failure from an LLM provider.
//
// Retryable errors are transient and worth a corrective retry. Fatal errors
// mean the provider cannot serve any request with the current configuration
// (bad or missing credentials, exhausted quota) and end the session.
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Retryable bool
	Fatal     bool
	Cause     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// IsFatal reports whether err carries a fatal ProviderError.
func IsFatal(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Fatal
}

// IsRetryable reports whether err carries a retryable ProviderError.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

// MissingKey is the error adapters return when constructed without a key.
func MissingKey(provider string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     CodeMissingAPIKey,
		Message:  "API key is not configured",
		Fatal:    true,
	}
}

// Classify maps an SDK error to a ProviderError. status is the HTTP status
// code when the SDK exposes one, or 0. Already classified errors and context
// cancellation pass through unchanged.
func Classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	e := &ProviderError{Provider: provider, Message: err.Error(), Cause: err}
	msg := strings.ToLower(err.Error())
	if status == 0 {
		status = statusInMessage(msg)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		e.Code, e.Retryable = CodeTimeout, true
	case strings.Contains(msg, "quota"), strings.Contains(msg, "billing"):
		e.Code, e.Fatal = CodeQuotaExceeded, true
	case status == 429,
		strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "too many requests"):
		e.Code, e.Retryable = CodeRateLimited, true
	case status == 401, status == 403,
		strings.Contains(msg, "invalid api key"), strings.Contains(msg, "incorrect api key"),
		strings.Contains(msg, "api_key"), strings.Contains(msg, "api key not valid"),
		strings.Contains(msg, "unauthorized"), strings.Contains(msg, "authentication"):
		e.Code, e.Fatal = CodeInvalidAPIKey, true
	case status >= 500,
		strings.Contains(msg, "internal server error"), strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "service unavailable"), strings.Contains(msg, "overloaded"):
		e.Code, e.Retryable = CodeServerError, true
	case strings.Contains(msg, "connection"), strings.Contains(msg, "network"),
		strings.Contains(msg, "eof"):
		e.Code, e.Retryable = CodeNetwork, true
	default:
		e.Code = CodeAPIError
	}
	return e
}

// statusInMessage finds a bare HTTP status code such as "429" in msg.
func statusInMessage(msg string) int {
	for _, field := range strings.FieldsFunc(msg, func(r rune) bool {
		return r < '0' || r > '9'
	}) {
		if len(field) != 3 {
			continue
		}
		if n, err := strconv.Atoi(field); err == nil && n >= 400 && n < 600 {
			return n
		}
	}
	return 0
}
