// Package connector defines the uniform fetch contract every data source
// integration implements, plus the static registry the planner consults.
package connector

import (
	"context"
	"errors"
	"fmt"
)

// Payload is one raw connector response. The orchestrator persists it
// verbatim; only the matching extractor interprets it.
type Payload struct {
	ContentType string
	Body        []byte
}

// Connector fetches raw data for a query from one external source.
type Connector interface {
	// ID returns the registry identifier of this connector.
	ID() string

	// Fetch retrieves the raw payload for the query. Implementations must
	// honour ctx cancellation; the orchestrator applies the per-call
	// timeout through ctx.
	Fetch(ctx context.Context, query string) (*Payload, error)
}

// Error wraps a failed connector call. The orchestrator catches it, logs
// it and excludes the call; it never escapes the orchestrator boundary.
type Error struct {
	ConnectorID string
	Err         error
}

func (e *Error) Error() string {
	return fmt.Sprintf("connector %s: %v", e.ConnectorID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// TimeoutError marks a call that exceeded its per-call timeout.
type TimeoutError struct {
	ConnectorID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("connector %s: timed out", e.ConnectorID)
}

// IsTimeout reports whether err is a per-call timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded)
}
