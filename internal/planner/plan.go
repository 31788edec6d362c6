package planner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/lens"
)

// Call is one planned connector invocation.
type Call struct {
	ConnectorID string
	Cost        float64
	Timeout     time.Duration
}

// ExecutionPlan is an ordered list of phases. Each phase's calls run
// concurrently; phases run sequentially. Built once, consumed once.
type ExecutionPlan struct {
	Phases    [][]Call
	TotalCost float64
}

// Calls returns every planned call in phase order.
func (p *ExecutionPlan) Calls() []Call {
	var all []Call
	for _, phase := range p.Phases {
		all = append(all, phase...)
	}
	return all
}

// EmptyPlanError reports that no connector was selected for the query.
// A legitimate outcome, not a crash: the run ends early and is reported.
type EmptyPlanError struct {
	Query string
}

func (e *EmptyPlanError) Error() string {
	return fmt.Sprintf("no connector selected for query %q", e.Query)
}

// Plan evaluates every connector rule's triggers against the features and
// assembles a phased plan under the cost budget. Selection walks
// candidates in descending priority, ties broken by registry order, so
// when the budget runs short the lowest-priority connector is dropped
// first and the result never depends on map iteration order.
func Plan(features Features, rules []lens.ConnectorRule, registry *connector.Registry, budget float64) (*ExecutionPlan, error) {
	type candidate struct {
		rule  lens.ConnectorRule
		entry connector.Entry
		order int
	}

	var candidates []candidate
	for _, rule := range rules {
		entry, ok := registry.Entry(rule.Connector)
		if !ok {
			continue
		}
		if !triggered(rule, features) {
			continue
		}
		candidates = append(candidates, candidate{
			rule:  rule,
			entry: entry,
			order: registry.RegistryOrder(rule.Connector),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].rule.Priority != candidates[j].rule.Priority {
			return candidates[i].rule.Priority > candidates[j].rule.Priority
		}
		return candidates[i].order < candidates[j].order
	})

	byPhase := map[int][]Call{}
	var phases []int
	total := 0.0
	for _, c := range candidates {
		if total+c.entry.CostPerCall > budget {
			continue
		}
		total += c.entry.CostPerCall
		if _, ok := byPhase[c.entry.Phase]; !ok {
			phases = append(phases, c.entry.Phase)
		}
		byPhase[c.entry.Phase] = append(byPhase[c.entry.Phase], Call{
			ConnectorID: c.entry.ID,
			Cost:        c.entry.CostPerCall,
			Timeout:     c.entry.Timeout,
		})
	}

	if len(byPhase) == 0 {
		return nil, &EmptyPlanError{Query: features.Query}
	}

	sort.Ints(phases)
	plan := &ExecutionPlan{TotalCost: total}
	for _, p := range phases {
		plan.Phases = append(plan.Phases, byPhase[p])
	}
	return plan, nil
}

// triggered reports whether any of the rule's trigger predicates passes.
// A rule with no triggers never fires.
func triggered(rule lens.ConnectorRule, features Features) bool {
	for _, t := range rule.Triggers {
		if evaluate(t, features) {
			return true
		}
	}
	return false
}

func evaluate(t lens.Trigger, features Features) bool {
	switch t.Kind {
	case lens.TriggerAnyKeywords:
		threshold := t.Threshold
		if threshold < 1 {
			threshold = 1
		}
		return features.MatchedCount(t.Group) >= threshold

	case lens.TriggerAllKeywords:
		want := t.Keywords
		if len(want) == 0 {
			return false
		}
		hits := map[string]struct{}{}
		for _, h := range features.Matched(t.Group) {
			hits[h] = struct{}{}
		}
		for _, kw := range want {
			if _, ok := hits[normalizeKeyword(kw)]; !ok {
				return false
			}
		}
		return true

	case lens.TriggerLocationContext:
		// Fires when the query carries any hit from the declared
		// location vocabulary group.
		return features.MatchedCount(t.Group) > 0
	}
	return false
}

func normalizeKeyword(kw string) string {
	return strings.ToLower(strings.TrimSpace(kw))
}
