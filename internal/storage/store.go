// Package storage is the SQLite persistence boundary: append-only raw
// ingestion inserts and idempotent entity upserts by natural key. Every
// write is its own transaction; no cross-entity transaction spans a run,
// so an aborted run leaves already-finalized entities valid.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/lenscan/lenscan/internal/model"
	"github.com/lenscan/lenscan/internal/storage/migrations"
)

// ErrNotFound marks a missing row.
var ErrNotFound = errors.New("storage: not found")

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database under dataDir. An
// empty dataDir defaults to ~/.lenscan/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".lenscan", "data")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "lenscan.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		version, err := strconv.Atoi(strings.SplitN(name, "_", 2)[0])
		if err != nil {
			return fmt.Errorf("migration %s: bad version prefix", name)
		}
		if version <= current {
			continue
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// InsertRawIngestion appends one raw ingestion. Rows are never updated:
// ingestion IDs derive from content, so re-observing identical content
// is a no-op rather than a duplicate.
func (s *Store) InsertRawIngestion(ctx context.Context, r model.RawIngestion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO raw_ingestions (id, connector_id, query, fetched_at, content_type, payload, cost, trust_level)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		r.ID, r.ConnectorID, r.Query, r.FetchedAt.UTC(), r.ContentType, r.Payload, r.Cost, r.TrustLevel)
	if err != nil {
		return fmt.Errorf("insert raw ingestion: %w", err)
	}
	return nil
}

// GetRawIngestion loads one raw ingestion by ID.
func (s *Store) GetRawIngestion(ctx context.Context, id string) (model.RawIngestion, error) {
	var r model.RawIngestion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, connector_id, query, fetched_at, content_type, payload, cost, trust_level
		FROM raw_ingestions WHERE id = ?`, id).
		Scan(&r.ID, &r.ConnectorID, &r.Query, &r.FetchedAt, &r.ContentType, &r.Payload, &r.Cost, &r.TrustLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("get raw ingestion: %w", err)
	}
	return r, nil
}

// ListRawIngestions returns a query's ingestions in insertion order.
// Insertion order carries no semantic meaning; it is listing order only.
func (s *Store) ListRawIngestions(ctx context.Context, query string) ([]model.RawIngestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, connector_id, query, fetched_at, content_type, payload, cost, trust_level
		FROM raw_ingestions WHERE query = ? ORDER BY rowid`, query)
	if err != nil {
		return nil, fmt.Errorf("list raw ingestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.RawIngestion
	for rows.Next() {
		var r model.RawIngestion
		if err := rows.Scan(&r.ID, &r.ConnectorID, &r.Query, &r.FetchedAt, &r.ContentType, &r.Payload, &r.Cost, &r.TrustLevel); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertEntity inserts or updates one persisted entity by slug.
// Re-running identical input updates the same row, never inserts a
// duplicate.
func (s *Store) UpsertEntity(ctx context.Context, e model.PersistedEntity) error {
	primitives, err := json.Marshal(e.Primitives)
	if err != nil {
		return fmt.Errorf("marshal primitives: %w", err)
	}
	dimensions, err := json.Marshal(e.Dimensions)
	if err != nil {
		return fmt.Errorf("marshal dimensions: %w", err)
	}
	modules, err := json.Marshal(e.Modules)
	if err != nil {
		return fmt.Errorf("marshal modules: %w", err)
	}
	externalIDs, err := json.Marshal(e.ExternalIDs)
	if err != nil {
		return fmt.Errorf("marshal external ids: %w", err)
	}
	provenance, err := json.Marshal(e.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (slug, name, class, primitives, dimensions, modules, external_ids, provenance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			name = excluded.name,
			class = excluded.class,
			primitives = excluded.primitives,
			dimensions = excluded.dimensions,
			modules = excluded.modules,
			external_ids = excluded.external_ids,
			provenance = excluded.provenance,
			updated_at = excluded.updated_at`,
		e.Slug, e.Primitives.Name, string(e.Class), primitives, dimensions, modules, externalIDs, provenance, e.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}
	return nil
}

// GetEntityBySlug loads one persisted entity.
func (s *Store) GetEntityBySlug(ctx context.Context, slug string) (*model.PersistedEntity, error) {
	var (
		e                                                  model.PersistedEntity
		class                                              string
		primitives, dimensions, modules, external, proven  []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT slug, class, primitives, dimensions, modules, external_ids, provenance, updated_at
		FROM entities WHERE slug = ?`, slug).
		Scan(&e.Slug, &class, &primitives, &dimensions, &modules, &external, &proven, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}

	e.Class = model.EntityClass(class)
	if err := json.Unmarshal(primitives, &e.Primitives); err != nil {
		return nil, fmt.Errorf("unmarshal primitives: %w", err)
	}
	if err := json.Unmarshal(dimensions, &e.Dimensions); err != nil {
		return nil, fmt.Errorf("unmarshal dimensions: %w", err)
	}
	if err := json.Unmarshal(modules, &e.Modules); err != nil {
		return nil, fmt.Errorf("unmarshal modules: %w", err)
	}
	if err := json.Unmarshal(external, &e.ExternalIDs); err != nil {
		return nil, fmt.Errorf("unmarshal external ids: %w", err)
	}
	if err := json.Unmarshal(proven, &e.Provenance); err != nil {
		return nil, fmt.Errorf("unmarshal provenance: %w", err)
	}
	return &e, nil
}

// FindSlugByExternalID returns the slug of an entity already known under
// a connector-scoped external ID, so renames keep their identity.
func (s *Store) FindSlugByExternalID(ctx context.Context, connectorID, externalID string) (string, error) {
	var slug string
	err := s.db.QueryRowContext(ctx, `
		SELECT slug FROM entities
		WHERE json_extract(external_ids, '$.' || ?) = ?
		ORDER BY slug LIMIT 1`, connectorID, externalID).Scan(&slug)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find by external id: %w", err)
	}
	return slug, nil
}

// CountEntities returns the number of persisted entities.
func (s *Store) CountEntities(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&n)
	return n, err
}
