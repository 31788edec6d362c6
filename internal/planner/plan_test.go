package planner

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/lens"
)

// stubConnector satisfies connector.Connector for registry setup; plans
// never invoke Fetch.
type stubConnector struct{ id string }

func (s *stubConnector) ID() string { return s.id }
func (s *stubConnector) Fetch(context.Context, string) (*connector.Payload, error) {
	return nil, errors.New("not fetchable")
}

func newTestRegistry(t *testing.T, entries ...connector.Entry) *connector.Registry {
	t.Helper()
	r := connector.NewRegistry()
	for _, e := range entries {
		if err := r.Register(e, &stubConnector{id: e.ID}); err != nil {
			t.Fatal(err)
		}
	}
	return r
}

func anyKeywordsRule(connectorID, group string, priority int) lens.ConnectorRule {
	return lens.ConnectorRule{
		Connector: connectorID,
		Priority:  priority,
		Triggers:  []lens.Trigger{{Kind: lens.TriggerAnyKeywords, Group: group}},
	}
}

func TestExtractFeatures(t *testing.T) {
	vocab := map[string][]string{
		"sport":    {"Padel", "padel court", "tennis"},
		"location": {"rotterdam", "near me"},
	}
	f := ExtractFeatures("Padel court near me", vocab)

	if got := f.Matched("sport"); !reflect.DeepEqual(got, []string{"padel", "padel court"}) {
		t.Errorf("sport hits = %v", got)
	}
	if got := f.MatchedCount("location"); got != 1 {
		t.Errorf("location count = %d", got)
	}
	if f.MatchedCount("missing") != 0 {
		t.Error("unknown group should have no hits")
	}
}

func TestExtractFeatures_CollectsAllMatches(t *testing.T) {
	// Every matching keyword lands in the hit set, not only the first.
	f := ExtractFeatures("indoor padel and outdoor padel", map[string][]string{
		"venue": {"indoor", "outdoor", "rooftop"},
	})
	if got := f.MatchedCount("venue"); got != 2 {
		t.Errorf("expected 2 hits, got %d", got)
	}
}

func TestPlan_BudgetDropsLowestPriority(t *testing.T) {
	registry := newTestRegistry(t,
		connector.Entry{ID: "cheap", CostPerCall: 0.01, Phase: 0},
		connector.Entry{ID: "pricey", CostPerCall: 0.05, Phase: 0},
	)
	features := ExtractFeatures("padel", map[string][]string{"sport": {"padel"}})
	rules := []lens.ConnectorRule{
		anyKeywordsRule("cheap", "sport", 10),
		anyKeywordsRule("pricey", "sport", 5),
	}

	plan, err := Plan(features, rules, registry, 0.02)
	if err != nil {
		t.Fatal(err)
	}

	calls := plan.Calls()
	if len(calls) != 1 || calls[0].ConnectorID != "cheap" {
		t.Fatalf("expected only the cheap high-priority call, got %+v", calls)
	}
	if plan.TotalCost != 0.01 {
		t.Errorf("total cost = %v", plan.TotalCost)
	}
}

func TestPlan_EmptyPlanError(t *testing.T) {
	registry := newTestRegistry(t, connector.Entry{ID: "static", CostPerCall: 0.01})
	features := ExtractFeatures("quantum chromodynamics", map[string][]string{"sport": {"padel"}})

	_, err := Plan(features, []lens.ConnectorRule{anyKeywordsRule("static", "sport", 1)}, registry, 1)
	var empty *EmptyPlanError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyPlanError, got %v", err)
	}
	if empty.Query != "quantum chromodynamics" {
		t.Errorf("query = %q", empty.Query)
	}
}

func TestPlan_PhasesOrdered(t *testing.T) {
	registry := newTestRegistry(t,
		connector.Entry{ID: "late", CostPerCall: 0.01, Phase: 2},
		connector.Entry{ID: "early", CostPerCall: 0.01, Phase: 0},
		connector.Entry{ID: "mid", CostPerCall: 0.01, Phase: 1},
	)
	features := ExtractFeatures("padel", map[string][]string{"sport": {"padel"}})
	rules := []lens.ConnectorRule{
		anyKeywordsRule("late", "sport", 1),
		anyKeywordsRule("early", "sport", 1),
		anyKeywordsRule("mid", "sport", 1),
	}

	plan, err := Plan(features, rules, registry, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(plan.Phases))
	}
	want := []string{"early", "mid", "late"}
	for i, phase := range plan.Phases {
		if phase[0].ConnectorID != want[i] {
			t.Errorf("phase %d = %s, want %s", i, phase[0].ConnectorID, want[i])
		}
	}
}

func TestPlan_RegistryOrderBreaksTies(t *testing.T) {
	registry := newTestRegistry(t,
		connector.Entry{ID: "first", CostPerCall: 0.02, Phase: 0},
		connector.Entry{ID: "second", CostPerCall: 0.02, Phase: 0},
	)
	features := ExtractFeatures("padel", map[string][]string{"sport": {"padel"}})
	rules := []lens.ConnectorRule{
		anyKeywordsRule("second", "sport", 5),
		anyKeywordsRule("first", "sport", 5),
	}

	// Budget admits one call; equal priority means registration order
	// decides, regardless of rule order in the document.
	plan, err := Plan(features, rules, registry, 0.02)
	if err != nil {
		t.Fatal(err)
	}
	calls := plan.Calls()
	if len(calls) != 1 || calls[0].ConnectorID != "first" {
		t.Fatalf("expected first by registry order, got %+v", calls)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	registry := newTestRegistry(t,
		connector.Entry{ID: "a", CostPerCall: 0.01, Phase: 0},
		connector.Entry{ID: "b", CostPerCall: 0.01, Phase: 0},
		connector.Entry{ID: "c", CostPerCall: 0.01, Phase: 1},
	)
	features := ExtractFeatures("padel", map[string][]string{"sport": {"padel"}})
	rules := []lens.ConnectorRule{
		anyKeywordsRule("a", "sport", 3),
		anyKeywordsRule("b", "sport", 2),
		anyKeywordsRule("c", "sport", 1),
	}

	first, err := Plan(features, rules, registry, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, err := Plan(features, rules, registry, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("plan differs between runs: %+v vs %+v", first, again)
		}
	}
}

func TestEvaluate_AllKeywords(t *testing.T) {
	features := ExtractFeatures("indoor padel court", map[string][]string{
		"sport": {"padel", "court", "tennis"},
	})

	all := lens.Trigger{Kind: lens.TriggerAllKeywords, Group: "sport", Keywords: []string{"Padel", "court"}}
	if !evaluate(all, features) {
		t.Error("all declared keywords are present, trigger should fire")
	}

	missing := lens.Trigger{Kind: lens.TriggerAllKeywords, Group: "sport", Keywords: []string{"padel", "tennis"}}
	if evaluate(missing, features) {
		t.Error("tennis is absent, trigger should not fire")
	}

	empty := lens.Trigger{Kind: lens.TriggerAllKeywords, Group: "sport"}
	if evaluate(empty, features) {
		t.Error("all_keywords with no keywords never fires")
	}
}

func TestEvaluate_LocationContext(t *testing.T) {
	features := ExtractFeatures("padel in rotterdam", map[string][]string{
		"location": {"rotterdam"},
	})
	tr := lens.Trigger{Kind: lens.TriggerLocationContext, Group: "location"}
	if !evaluate(tr, features) {
		t.Error("location hit present, trigger should fire")
	}
	if evaluate(lens.Trigger{Kind: lens.TriggerLocationContext, Group: "other"}, features) {
		t.Error("no hits for group, trigger should not fire")
	}
}
