package model

import "time"

// EntityClass is the universal structural class of an entity. Classification
// is purely structural and never consults lens vocabulary.
type EntityClass string

const (
	ClassPlace        EntityClass = "place"
	ClassPerson       EntityClass = "person"
	ClassOrganization EntityClass = "organization"
	ClassEvent        EntityClass = "event"
	ClassThing        EntityClass = "thing"
)

// RawIngestion is an immutable record of one connector response. It is
// written before extraction begins and never mutated afterwards.
type RawIngestion struct {
	ID          string    `json:"id"`
	ConnectorID string    `json:"connector_id"`
	Query       string    `json:"query"`
	FetchedAt   time.Time `json:"fetched_at"`
	ContentType string    `json:"content_type,omitempty"`
	Payload     []byte    `json:"payload"`
	Cost        float64   `json:"cost"`
	TrustLevel  float64   `json:"trust_level"`
}

// Primitives are the universal schema fields an extractor is allowed to
// populate. They carry no domain interpretation.
type Primitives struct {
	Name          string     `json:"name,omitempty"`
	GivenName     string     `json:"given_name,omitempty"`
	FamilyName    string     `json:"family_name,omitempty"`
	Description   string     `json:"description,omitempty"`
	StreetAddress string     `json:"street_address,omitempty"`
	City          string     `json:"city,omitempty"`
	Postcode      string     `json:"postcode,omitempty"`
	Country       string     `json:"country,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Website       string     `json:"website,omitempty"`
	Email         string     `json:"email,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	ExternalID    string     `json:"external_id,omitempty"`
}

// HasGeo reports whether both coordinates are present.
func (p Primitives) HasGeo() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// ExtractedEntity is one logical entity observed by one connector. It is
// populated in two passes: the extractor fills Primitives and Observations,
// then the mapping engine fills Dimensions and Modules. The extractor-facing
// type (extract.Extraction) structurally has no canonical fields, so the
// first pass cannot emit interpreted data.
type ExtractedEntity struct {
	ID             string              `json:"id"`
	RawIngestionID string              `json:"raw_ingestion_id"`
	ConnectorID    string              `json:"connector_id"`
	TrustLevel     float64             `json:"trust_level"`
	Primitives     Primitives          `json:"primitives"`
	Observations   map[string]string   `json:"observations,omitempty"`
	Dimensions     map[string][]string `json:"dimensions,omitempty"`
	// Confidence records the strongest matched rule confidence per
	// "dimension/value" pair. Metadata only, never a gate.
	Confidence map[string]float64 `json:"confidence,omitempty"`
	Modules    map[string]Module  `json:"modules,omitempty"`
	Class      EntityClass        `json:"class,omitempty"`
}

// Module is namespaced structured data attached to an entity when a
// dimension trigger fires.
type Module map[string]any

// DedupGroup is a set of same-run entities believed to denote one
// real-world entity. Key is the smallest member entity ID.
type DedupGroup struct {
	Key     string   `json:"key"`
	Members []string `json:"members"`
}

// Provenance records which connectors contributed to a merged entity,
// ordered by descending trust.
type Provenance struct {
	Sources       []string  `json:"sources"`
	PrimarySource string    `json:"primary_source"`
	VerifiedAt    time.Time `json:"verified_at"`
}

// MergedEntity is the deterministic merge of one dedup group.
type MergedEntity struct {
	Primitives  Primitives          `json:"primitives"`
	Dimensions  map[string][]string `json:"dimensions,omitempty"`
	Modules     map[string]Module   `json:"modules,omitempty"`
	Class       EntityClass         `json:"class"`
	ExternalIDs map[string]string   `json:"external_ids,omitempty"`
	Provenance  Provenance          `json:"provenance"`
}

// PersistedEntity is a MergedEntity with cross-run identity. It is upserted
// by natural key (slug, or an already-known external ID).
type PersistedEntity struct {
	MergedEntity
	Slug      string    `json:"slug"`
	UpdatedAt time.Time `json:"updated_at"`
}
