// Package planner turns a query into features and features into a
// budget-capped, phased execution plan.
package planner

import (
	"sort"
	"strings"
)

// Features are the ephemeral, per-query result of vocabulary matching:
// for each vocabulary group, the set of keywords found in the query.
// Derivation is a deterministic function of (query, vocabulary).
type Features struct {
	Query string
	// Hits maps vocabulary group to its matched keywords, sorted.
	Hits map[string][]string
}

// Matched returns the hit set for one group.
func (f Features) Matched(group string) []string { return f.Hits[group] }

// MatchedCount returns the number of hits for one group.
func (f Features) MatchedCount(group string) int { return len(f.Hits[group]) }

// ExtractFeatures runs case-insensitive multi-keyword matching of every
// vocabulary group against the query. All matches are collected, never
// just the first, so the result does not depend on iteration order.
func ExtractFeatures(query string, vocabulary map[string][]string) Features {
	lowered := strings.ToLower(query)
	hits := make(map[string][]string)

	for group, keywords := range vocabulary {
		var matched []string
		seen := map[string]struct{}{}
		for _, kw := range keywords {
			k := strings.ToLower(strings.TrimSpace(kw))
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			if strings.Contains(lowered, k) {
				matched = append(matched, k)
				seen[k] = struct{}{}
			}
		}
		if len(matched) > 0 {
			sort.Strings(matched)
			hits[group] = matched
		}
	}

	return Features{Query: query, Hits: hits}
}
