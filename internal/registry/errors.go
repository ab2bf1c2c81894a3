package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel and typed errors surfaced at the registry boundary. Delivery
// failures never appear here: those are absorbed into attempt history and
// counters by the delivery engine.
var (
	// ErrUnauthorized means the caller has no membership in the tenant.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller is a tenant member but the role is
	// insufficient for the operation.
	ErrForbidden = errors.New("forbidden")

	ErrNotFound = errors.New("subscription not found")
)

// ValidationError rejects a malformed request shape or an out-of-range
// value. Never retried.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
}

// InvalidEventTypesError lists the offending event types alongside the
// valid catalog so the caller can fix the request.
type InvalidEventTypesError struct {
	Invalid []string
	Catalog []string
}

func (e *InvalidEventTypesError) Error() string {
	return fmt.Sprintf("invalid event types: %s (valid types: %s)",
		strings.Join(e.Invalid, ", "), strings.Join(e.Catalog, ", "))
}

// EndpointUnreachableError blocks persistence of a URL that failed its
// reachability probe.
type EndpointUnreachableError struct {
	URL    string
	Reason string
}

func (e *EndpointUnreachableError) Error() string {
	return fmt.Sprintf("endpoint unreachable: %s: %s", e.URL, e.Reason)
}
