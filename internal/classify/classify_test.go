package classify

import (
	"testing"
	"time"

	"github.com/lenscan/lenscan/internal/model"
)

func TestClassify(t *testing.T) {
	lat, lng := 51.92, 4.48
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		p      model.Primitives
		expect model.EntityClass
	}{
		{"geo pair", model.Primitives{Latitude: &lat, Longitude: &lng}, model.ClassPlace},
		{"street address", model.Primitives{StreetAddress: "Coolsingel 1"}, model.ClassPlace},
		{"city only", model.Primitives{City: "Rotterdam"}, model.ClassPlace},
		{"postcode only", model.Primitives{Postcode: "3011 AD"}, model.ClassPlace},
		{"given name", model.Primitives{GivenName: "Maria"}, model.ClassPerson},
		{"family name", model.Primitives{FamilyName: "Jansen"}, model.ClassPerson},
		{"start time", model.Primitives{StartTime: &start}, model.ClassEvent},
		{"website", model.Primitives{Website: "https://example.com"}, model.ClassOrganization},
		{"phone", model.Primitives{Phone: "+3110"}, model.ClassOrganization},
		{"email", model.Primitives{Email: "x@example.com"}, model.ClassOrganization},
		{"nothing structural", model.Primitives{Name: "padel racket"}, model.ClassThing},
		// Location structure wins over person and organization fields.
		{"place beats person", model.Primitives{City: "Rotterdam", GivenName: "Maria"}, model.ClassPlace},
		{"person beats event", model.Primitives{GivenName: "Maria", StartTime: &start}, model.ClassPerson},
		{"event beats organization", model.Primitives{StartTime: &start, Website: "https://example.com"}, model.ClassEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(model.ExtractedEntity{Primitives: tt.p})
			if got != tt.expect {
				t.Errorf("Classify() = %s, want %s", got, tt.expect)
			}
		})
	}
}

func TestClassify_HalfGeoPairIsNotGeo(t *testing.T) {
	lat := 51.92
	// A lone latitude is not a usable location; without other location
	// structure the entity is not a place.
	got := Classify(model.ExtractedEntity{Primitives: model.Primitives{Latitude: &lat, Website: "https://x"}})
	if got != model.ClassOrganization {
		t.Errorf("Classify() = %s, want %s", got, model.ClassOrganization)
	}
}
