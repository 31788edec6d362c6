// Package extract is the boundary between raw connector payloads and the
// interpreted pipeline. Extractors emit universal schema primitives and
// opaque observations, nothing else; the boundary check drops any record
// that tries to smuggle interpreted fields through.
package extract

import (
	"context"
	"fmt"

	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/model"
)

// Extraction is the phase-1 shape of one entity: primitives plus opaque
// observations. The type structurally has no canonical-dimension or
// module fields, so an extractor cannot populate them.
type Extraction struct {
	Primitives   model.Primitives
	Observations map[string]string
}

// Extractor transforms one connector's raw payload into extractions.
type Extractor interface {
	// ConnectorID names the connector whose payloads this extractor owns.
	ConnectorID() string

	// Extract parses the payload. One payload may yield many entities.
	// ctx covers optional sub-extraction calls; plain parsing ignores it.
	Extract(ctx context.Context, payload *connector.Payload) ([]Extraction, error)
}

// BoundaryError reports an extraction that emitted a forbidden key. The
// record is dropped loudly; this signals an extractor defect, not bad
// input, so the forbidden field is never silently stripped.
type BoundaryError struct {
	ConnectorID string
	Key         string
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("extractor %s emitted forbidden key %q", e.ConnectorID, e.Key)
}

// CheckBoundary validates one extraction against the set of forbidden
// keys (canonical dimension and module names from the loaded lens).
func CheckBoundary(connectorID string, ex Extraction, forbidden map[string]struct{}) error {
	for key := range ex.Observations {
		if _, bad := forbidden[key]; bad {
			return &BoundaryError{ConnectorID: connectorID, Key: key}
		}
	}
	return nil
}

// Registry resolves the extractor for a connector ID.
type Registry struct {
	byConnector map[string]Extractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{byConnector: make(map[string]Extractor)}
}

// Register adds an extractor for its connector.
func (r *Registry) Register(e Extractor) {
	r.byConnector[e.ConnectorID()] = e
}

// For returns the extractor owning a connector's payloads.
func (r *Registry) For(connectorID string) (Extractor, bool) {
	e, ok := r.byConnector[connectorID]
	return e, ok
}
