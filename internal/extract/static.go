package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/model"
)

// staticEntity is the JSON shape of one entity inside a static fixture
// payload.
type staticEntity struct {
	Name          string            `json:"name"`
	GivenName     string            `json:"given_name"`
	FamilyName    string            `json:"family_name"`
	Description   string            `json:"description"`
	StreetAddress string            `json:"street_address"`
	City          string            `json:"city"`
	Postcode      string            `json:"postcode"`
	Country       string            `json:"country"`
	Phone         string            `json:"phone"`
	Website       string            `json:"website"`
	Email         string            `json:"email"`
	Latitude      *float64          `json:"lat"`
	Longitude     *float64          `json:"lng"`
	StartTime     *time.Time        `json:"start_time"`
	EndTime       *time.Time        `json:"end_time"`
	ExternalID    string            `json:"external_id"`
	Observations  map[string]string `json:"observations"`
}

type staticPayload struct {
	Entities []staticEntity `json:"entities"`
}

// StaticExtractor parses the static connector's JSON fixtures.
type StaticExtractor struct {
	connectorID string
}

// NewStaticExtractor creates the extractor for one static connector.
func NewStaticExtractor(connectorID string) *StaticExtractor {
	return &StaticExtractor{connectorID: connectorID}
}

// ConnectorID implements Extractor.
func (e *StaticExtractor) ConnectorID() string { return e.connectorID }

// Extract implements Extractor.
func (e *StaticExtractor) Extract(_ context.Context, payload *connector.Payload) ([]Extraction, error) {
	var doc staticPayload
	if err := json.Unmarshal(payload.Body, &doc); err != nil {
		return nil, fmt.Errorf("parse fixture payload: %w", err)
	}

	extractions := make([]Extraction, 0, len(doc.Entities))
	for _, ent := range doc.Entities {
		ex := Extraction{
			Primitives: model.Primitives{
				Name:          NormalizeWhitespace(ent.Name),
				GivenName:     NormalizeWhitespace(ent.GivenName),
				FamilyName:    NormalizeWhitespace(ent.FamilyName),
				Description:   NormalizeWhitespace(ent.Description),
				StreetAddress: NormalizeWhitespace(ent.StreetAddress),
				City:          NormalizeWhitespace(ent.City),
				Postcode:      NormalizeWhitespace(ent.Postcode),
				Country:       NormalizeWhitespace(ent.Country),
				Phone:         NormalizePhone(ent.Phone),
				Website:       NormalizeWebsite(ent.Website),
				Email:         NormalizeWhitespace(ent.Email),
				Latitude:      ent.Latitude,
				Longitude:     ent.Longitude,
				StartTime:     ent.StartTime,
				EndTime:       ent.EndTime,
				ExternalID:    ent.ExternalID,
			},
			Observations: map[string]string{},
		}
		for k, v := range ent.Observations {
			ex.Observations[k] = NormalizeWhitespace(v)
		}
		extractions = append(extractions, ex)
	}
	return extractions, nil
}
