package dedup

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/lenscan/lenscan/internal/model"
)

func geoEntity(id, name string, lat, lng float64) model.ExtractedEntity {
	return model.ExtractedEntity{
		ID:         id,
		Primitives: model.Primitives{Name: name, Latitude: &lat, Longitude: &lng},
	}
}

func TestGroup_ExternalID(t *testing.T) {
	entities := []model.ExtractedEntity{
		{ID: "ent_b", ConnectorID: "static", Primitives: model.Primitives{Name: "totally different", ExternalID: "osm:123"}},
		{ID: "ent_a", ConnectorID: "static", Primitives: model.Primitives{Name: "Padel Plaza", ExternalID: "osm:123"}},
		{ID: "ent_c", ConnectorID: "static", Primitives: model.Primitives{Name: "Bowling Hall", ExternalID: "osm:999"}},
	}

	groups := Group(entities)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %+v", len(groups), groups)
	}
	if !reflect.DeepEqual(groups[0].Members, []string{"ent_a", "ent_b"}) {
		t.Errorf("group members = %v", groups[0].Members)
	}
	if groups[0].Key != "ent_a" {
		t.Errorf("group key = %s, want smallest member ID", groups[0].Key)
	}
}

func TestGroup_ExternalIDScopedToConnector(t *testing.T) {
	// Two sources that both number their records happen to collide on
	// "42". The IDs live in different namespaces and assert nothing.
	entities := []model.ExtractedEntity{
		{ID: "ent_a", ConnectorID: "static", Primitives: model.Primitives{Name: "Padel Plaza", ExternalID: "42"}},
		{ID: "ent_b", ConnectorID: "webscrape", Primitives: model.Primitives{Name: "Luigi's Pizzeria", ExternalID: "42"}},
	}

	groups := Group(entities)
	if len(groups) != 2 {
		t.Fatalf("IDs from different connectors must not match, got %+v", groups)
	}
}

func TestGroup_GeoAndName(t *testing.T) {
	// ~50 m apart, names similar enough under geo corroboration.
	a := geoEntity("ent_a", "Padel Plaza Rotterdam", 51.9200, 4.4800)
	b := geoEntity("ent_b", "Padel Plaza", 51.9204, 4.4801)
	// Same name, 5 km away.
	c := geoEntity("ent_c", "Padel Plaza", 51.9650, 4.4800)

	groups := Group([]model.ExtractedEntity{a, b, c})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", groups)
	}
	if !reflect.DeepEqual(groups[0].Members, []string{"ent_a", "ent_b"}) {
		t.Errorf("members = %v", groups[0].Members)
	}
}

func TestGroup_NameOnlyRequiresNoGeo(t *testing.T) {
	a := model.ExtractedEntity{ID: "ent_a", Primitives: model.Primitives{Name: "Padel Plaza Rotterdam"}}
	b := model.ExtractedEntity{ID: "ent_b", Primitives: model.Primitives{Name: "padel plaza rotterdam"}}
	// Identical name but with coordinates: tier 3 must not fire, and the
	// coordinates are nowhere near a.
	c := geoEntity("ent_c", "Padel Plaza Rotterdam", 48.85, 2.35)

	groups := Group([]model.ExtractedEntity{a, b, c})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", groups)
	}
	if !reflect.DeepEqual(groups[0].Members, []string{"ent_a", "ent_b"}) {
		t.Errorf("members = %v", groups[0].Members)
	}
}

func TestGroup_Fingerprint(t *testing.T) {
	a := model.ExtractedEntity{ID: "ent_a", Primitives: model.Primitives{
		Name: "PP", StreetAddress: "Coolsingel 1", City: "Rotterdam", Phone: "+3110", Website: "https://pp.nl",
	}}
	b := model.ExtractedEntity{ID: "ent_b", Primitives: model.Primitives{
		Name: "The Plaza", StreetAddress: "Coolsingel 1", City: "Rotterdam", Phone: "+3110", Website: "https://pp.nl",
	}}

	groups := Group([]model.ExtractedEntity{a, b})
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %+v", groups)
	}
}

func TestGroup_TransitiveAcrossTiers(t *testing.T) {
	// a-b share an external ID (tier 1); b-c match on geo+name (tier 2).
	// All three end up in one group even though a and c share nothing.
	a := model.ExtractedEntity{ID: "ent_a", Primitives: model.Primitives{Name: "Plaza", ExternalID: "osm:1"}}
	b := geoEntity("ent_b", "Padel Plaza", 51.9200, 4.4800)
	b.Primitives.ExternalID = "osm:1"
	c := geoEntity("ent_c", "Padel Plaza", 51.9201, 4.4800)

	groups := Group([]model.ExtractedEntity{a, b, c})
	if len(groups) != 1 {
		t.Fatalf("expected 1 transitive group, got %+v", groups)
	}
	if !reflect.DeepEqual(groups[0].Members, []string{"ent_a", "ent_b", "ent_c"}) {
		t.Errorf("members = %v", groups[0].Members)
	}
}

func TestGroup_OrderInvariant(t *testing.T) {
	entities := []model.ExtractedEntity{
		{ID: "ent_a", Primitives: model.Primitives{Name: "Plaza", ExternalID: "osm:1"}},
		{ID: "ent_b", Primitives: model.Primitives{Name: "Padel Plaza", ExternalID: "osm:1"}},
		geoEntity("ent_c", "Padel Hal Noord", 51.90, 4.40),
		{ID: "ent_d", Primitives: model.Primitives{Name: "Padel Hal Noord"}},
		{ID: "ent_e", Primitives: model.Primitives{Name: "padel hal noord"}},
	}

	want := Group(entities)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]model.ExtractedEntity, len(entities))
		copy(shuffled, entities)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := Group(shuffled); !reflect.DeepEqual(want, got) {
			t.Fatalf("grouping depends on input order:\nwant %+v\ngot  %+v", want, got)
		}
	}
}

func TestGroup_Singletons(t *testing.T) {
	entities := []model.ExtractedEntity{
		{ID: "ent_a", Primitives: model.Primitives{Name: "Alpha"}},
		{ID: "ent_b", Primitives: model.Primitives{Name: "Beta"}},
	}
	groups := Group(entities)
	if len(groups) != 2 {
		t.Fatalf("expected singleton groups, got %+v", groups)
	}
	for _, g := range groups {
		if len(g.Members) != 1 || g.Key != g.Members[0] {
			t.Errorf("bad singleton group %+v", g)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Padel  Plaza ", "padel plaza"},
		{"Café Olé!", "cafe ole"},
		{"PADEL-PLAZA (Rotterdam)", "padelplaza rotterdam"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	if s := NameSimilarity("Padel Plaza Rotterdam", "padel plaza rotterdam"); s != 1 {
		t.Errorf("identical names similarity = %v", s)
	}
	if s := NameSimilarity("Padel Plaza Rotterdam", "Padel Plaza"); s < 0.7 {
		t.Errorf("overlapping names similarity = %v", s)
	}
	if s := NameSimilarity("Padel Plaza", "Bowling Hall"); s != 0 {
		t.Errorf("disjoint names similarity = %v", s)
	}
	if s := NameSimilarity("", "Padel"); s != 0 {
		t.Errorf("empty name similarity = %v", s)
	}
}

func TestFingerprint(t *testing.T) {
	fa, ok := Fingerprint(model.Primitives{StreetAddress: "Coolsingel 1", City: "Rotterdam"})
	if !ok {
		t.Fatal("expected fingerprint")
	}
	fb, _ := Fingerprint(model.Primitives{StreetAddress: "COOLSINGEL 1", City: "rotterdam"})
	if fa != fb {
		t.Error("fingerprint should be case-insensitive over the address")
	}
	if _, ok := Fingerprint(model.Primitives{Name: "only a name"}); ok {
		t.Error("no contact fields should mean no fingerprint")
	}
}
