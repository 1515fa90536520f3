// Package dto holds the request and response shapes of the HTTP API,
// with validation that rejects oversized or malformed payloads before
// they reach the pipeline.
package dto

import "errors"

// Validation errors shared across request types.
var (
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrQueryTooLong    = errors.New("query exceeds maximum length (2048)")
	ErrTopKOutOfRange  = errors.New("top_k must be between 1 and 50")
	ErrEmptyServices   = errors.New("services cannot be empty")
	ErrTooManyServices = errors.New("services count exceeds maximum (1000)")
)

// Field limits guarding the API against abuse.
const (
	MaxQueryLength      = 2048
	MaxTopK             = 50
	MaxServicesPerBatch = 1000
)

// ErrorResponse is the error body every endpoint returns on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
