// Package finalize gives a merged entity its cross-run identity: a
// deterministic slug and an idempotent upsert by natural key.
package finalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/lenscan/lenscan/internal/model"
	"github.com/lenscan/lenscan/internal/storage"
)

// Store is the persistence surface the finalizer needs.
type Store interface {
	UpsertEntity(ctx context.Context, e model.PersistedEntity) error
	GetEntityBySlug(ctx context.Context, slug string) (*model.PersistedEntity, error)
	FindSlugByExternalID(ctx context.Context, connectorID, externalID string) (string, error)
}

// Finalizer hands merged entities to storage.
type Finalizer struct {
	store Store
	// now is injectable for tests.
	now func() time.Time
}

// NewFinalizer creates a finalizer over a store.
func NewFinalizer(store Store) *Finalizer {
	return &Finalizer{store: store, now: time.Now}
}

// Finalize resolves the entity's natural key and upserts it. Identical
// input always lands on the same row: a known external ID reuses the
// stored slug, otherwise the slug derives from the normalized name,
// disambiguated only when a different entity already owns it.
func (f *Finalizer) Finalize(ctx context.Context, merged model.MergedEntity) (model.PersistedEntity, error) {
	slug, err := f.resolveSlug(ctx, merged)
	if err != nil {
		return model.PersistedEntity{}, err
	}

	persisted := model.PersistedEntity{
		MergedEntity: merged,
		Slug:         slug,
		UpdatedAt:    f.now().UTC(),
	}
	if err := f.store.UpsertEntity(ctx, persisted); err != nil {
		return model.PersistedEntity{}, fmt.Errorf("upsert %s: %w", slug, err)
	}
	return persisted, nil
}

func (f *Finalizer) resolveSlug(ctx context.Context, merged model.MergedEntity) (string, error) {
	// An already-known external ID wins: the entity keeps its identity
	// even when the display name changed.
	for _, connectorID := range sortedKeys(merged.ExternalIDs) {
		slug, err := f.store.FindSlugByExternalID(ctx, connectorID, merged.ExternalIDs[connectorID])
		if err == nil {
			return slug, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
	}

	base := Slugify(merged.Primitives.Name)
	if base == "" {
		base = "entity-" + disambiguator(merged)
	}

	existing, err := f.store.GetEntityBySlug(ctx, base)
	if errors.Is(err, storage.ErrNotFound) {
		return base, nil
	}
	if err != nil {
		return "", err
	}
	if sameEntity(existing, merged) {
		return base, nil
	}
	return base + "-" + disambiguator(merged), nil
}

// sameEntity decides whether the stored row and the merged entity denote
// one real-world entity: any shared external ID, or an identical
// normalized name. A conflicting ID from the same connector settles it
// the other way, so two same-named venues with distinct place IDs keep
// separate rows.
func sameEntity(existing *model.PersistedEntity, merged model.MergedEntity) bool {
	conflict := false
	for connectorID, id := range merged.ExternalIDs {
		stored, ok := existing.ExternalIDs[connectorID]
		if !ok {
			continue
		}
		if stored == id {
			return true
		}
		conflict = true
	}
	if conflict {
		return false
	}
	return normalizeForSlug(existing.Primitives.Name) == normalizeForSlug(merged.Primitives.Name)
}

// disambiguator is the stable collision suffix: first 8 hex chars of
// sha256(normalized name + city).
func disambiguator(merged model.MergedEntity) string {
	sum := sha256.Sum256([]byte(normalizeForSlug(merged.Primitives.Name) + "|" + normalizeForSlug(merged.Primitives.City)))
	return hex.EncodeToString(sum[:])[:8]
}

// Slugify turns a display name into a URL-safe slug.
func Slugify(name string) string {
	normalized := normalizeForSlug(name)
	return strings.Join(strings.Fields(normalized), "-")
}

func normalizeForSlug(s string) string {
	decomposed := norm.NFD.String(strings.ToLower(s))
	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
