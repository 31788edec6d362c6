package connector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Static serves fixture payloads from a directory, one JSON document per
// query-independent fixture file. It exists so the pipeline contract can
// be exercised end to end without network access or API keys.
type Static struct {
	id  string
	dir string
}

// NewStatic creates a fixture-backed connector. The fixture for a fetch
// is <dir>/<id>.json.
func NewStatic(id, dir string) *Static {
	return &Static{id: id, dir: dir}
}

// ID implements Connector.
func (s *Static) ID() string { return s.id }

// Fetch implements Connector.
func (s *Static) Fetch(ctx context.Context, query string) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{ConnectorID: s.id, Err: err}
	}
	path := filepath.Join(s.dir, s.id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{ConnectorID: s.id, Err: fmt.Errorf("read fixture: %w", err)}
	}
	return &Payload{ContentType: "application/json", Body: data}, nil
}
