// Package aierrors carries the error taxonomy shared across the runtime.
// Components wrap their failures into a Kind so callers can classify them
// (retry transient provider errors, degrade on analyzer failures, surface
// setup errors) without matching on message text.
package aierrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error into the runtime's taxonomy.
type Kind string

const (
	// Setup
	KindConfigNotFound        Kind = "config_not_found"
	KindConfigInvalid         Kind = "config_invalid"
	KindCredentialsMissing    Kind = "credentials_missing"
	KindDependencyUnavailable Kind = "dependency_unavailable"

	// Provider
	KindProviderAuth        Kind = "provider_auth"
	KindProviderRateLimited Kind = "provider_rate_limited"
	KindProviderTimeout     Kind = "provider_timeout"
	KindProviderBadResponse Kind = "provider_bad_response"
	KindProviderUnavailable Kind = "provider_unavailable"

	// Tool
	KindToolNotFound          Kind = "tool_not_found"
	KindToolAlreadyRegistered Kind = "tool_already_registered"
	KindToolInvalidArguments  Kind = "tool_invalid_arguments"
	KindToolExecutionFailed   Kind = "tool_execution_failed"
	KindToolTimeout           Kind = "tool_timeout"

	// Agent
	KindAgentNotFound         Kind = "agent_not_found"
	KindAgentProcessingFailed Kind = "agent_processing_failed"

	// Conversation / prompt
	KindTemplateNotFound    Kind = "template_not_found"
	KindMissingVariable     Kind = "missing_variable"
	KindResponseParseFailed Kind = "response_parse_failed"

	// Orchestration
	KindNoSuitableModel   Kind = "no_suitable_model"
	KindAggregationFailed Kind = "aggregation_failed"
)

// Error is the uniform error wrapper used across components.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration // set for rate-limited provider errors
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match on Kind: errors.Is(err, &Error{Kind: k}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a taxonomy error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a taxonomy error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error into the taxonomy. A nil cause returns nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// RateLimited creates a provider rate-limit error carrying the delay the
// provider asked for (zero when the provider did not say).
func RateLimited(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindProviderRateLimited, Message: message, RetryAfter: retryAfter}
}

// KindOf returns the Kind of err, or the empty Kind when err does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Transient reports whether err is worth retrying: provider rate limits,
// provider timeouts and outages, and tool timeouts. Everything else is
// treated as permanent.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindProviderRateLimited, KindProviderTimeout, KindProviderUnavailable, KindToolTimeout:
		return true
	}
	return false
}

// RetryAfterOf returns the retry-after hint carried by err, if any.
func RetryAfterOf(err error) (time.Duration, bool) {
	var e *Error
	if errors.As(err, &e) && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}
