package domain

import "fmt"

// Error types for consistent error handling across the routing layer.
// Failures of a chosen strategy are never surfaced to Execute callers;
// these types exist for the route-reason taxonomy, logging and the HTTP
// mapping of genuinely broken requests.

// ErrBackendUnavailable indicates the generative backend cannot be used:
// feature disabled, missing credentials, or circuit open.
type ErrBackendUnavailable struct {
	Reason string
}

func (e *ErrBackendUnavailable) Error() string {
	return fmt.Sprintf("generative backend unavailable: %s", e.Reason)
}

// ErrBackendTimeout indicates the generative backend exceeded its deadline.
type ErrBackendTimeout struct {
	Operation string
}

func (e *ErrBackendTimeout) Error() string {
	return fmt.Sprintf("backend timed out: %s", e.Operation)
}

// ErrBackendError indicates a malformed, empty or low-confidence backend result.
type ErrBackendError struct {
	Detail string
}

func (e *ErrBackendError) Error() string {
	return fmt.Sprintf("backend error: %s", e.Detail)
}

// ErrQuotaExceeded indicates the generative backend rejected the call on quota.
type ErrQuotaExceeded struct{}

func (e *ErrQuotaExceeded) Error() string {
	return "backend quota exceeded"
}

// ErrOutOfDomain indicates the query is outside the assistant's domain.
type ErrOutOfDomain struct {
	Query string
}

func (e *ErrOutOfDomain) Error() string {
	return "query out of domain"
}

// ErrUnsupportedQuery indicates a query shape neither strategy handles.
type ErrUnsupportedQuery struct {
	Query string
}

func (e *ErrUnsupportedQuery) Error() string {
	return "unsupported query"
}

// ErrCircuitOpen indicates the routing-level circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrExternalService indicates a failure in an external collaborator call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
