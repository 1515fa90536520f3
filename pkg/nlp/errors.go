package nlp

import (
	"cmp"
	"errors"
)

// Sentinel errors shared by the model clients.
var (
	// ErrRateLimit marks a rate-limited call. The retry client treats
	// these as retryable and backs off.
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrRefusal marks a model that declined to answer the prompt.
	ErrRefusal = errors.New("model refused to respond")

	// ErrEmptyResponse marks a completion with no usable content.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrInvalidModel marks a request naming a model the provider does
	// not serve. Never retryable.
	ErrInvalidModel = errors.New("invalid model for provider")
)

// matches reports whether target is of the concrete error type T. The typed
// errors below use it so errors.Is works regardless of wrapping.
func matches[T error](target error) bool {
	_, ok := target.(T)
	return ok
}

// RateLimitError carries the provider's rate limit message when one was
// returned. It satisfies errors.As and errors.Is checks regardless of
// wrapping.
type RateLimitError struct{ Message string }

// NewRateLimitError creates a rate limit error. An empty message falls
// back to the generic sentinel text.
func NewRateLimitError(message string) *RateLimitError { return &RateLimitError{Message: message} }

func (e *RateLimitError) Error() string { return cmp.Or(e.Message, ErrRateLimit.Error()) }

func (e *RateLimitError) Is(target error) bool { return matches[*RateLimitError](target) }

// RefusalError carries the model's stated reason for declining.
type RefusalError struct{ Reason string }

// NewRefusalError creates a refusal error with the model's reason.
func NewRefusalError(reason string) *RefusalError { return &RefusalError{Reason: reason} }

func (e *RefusalError) Error() string { return e.Reason }

func (e *RefusalError) Is(target error) bool { return matches[*RefusalError](target) }

// EmptyResponseError notes which provider returned nothing usable.
type EmptyResponseError struct{ Message string }

// NewEmptyResponseError creates an empty response error.
func NewEmptyResponseError(message string) *EmptyResponseError { return &EmptyResponseError{Message: message} }

func (e *EmptyResponseError) Error() string { return e.Message }

func (e *EmptyResponseError) Is(target error) bool { return matches[*EmptyResponseError](target) }
