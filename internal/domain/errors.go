package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session does not exist. Callers
	// recover by creating one.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when a session id already exists under a
	// different tenant scope. Cross-tenant reuse is rejected, never merged.
	ErrConflict = errors.New("session exists under a different tenant")

	// ErrUnsupportedContentType is a caller error: no routing decision can
	// be made, so no turn is recorded.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrPolicyBlocked is returned when the admission policy rejects the
	// request before routing.
	ErrPolicyBlocked = errors.New("request blocked by policy")

	// ErrUpstreamTimeout is returned when the upstream call exceeded its
	// timeout budget. The attempt is recorded; the caller may retry.
	ErrUpstreamTimeout = errors.New("upstream call timed out")

	// ErrCancelled is returned when the caller abandoned the request while
	// the upstream call was in flight.
	ErrCancelled = errors.New("request cancelled")

	// ErrStoreUnavailable indicates a durability-layer failure. It is fatal
	// to the request and, if persistent, to process health.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// UpstreamError is a transport or protocol failure reported by the upstream
// provider. Retryability depends on the status (a 401 is permanent, a 503
// may not be).
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error [%d]: %s", e.Status, e.Detail)
}
