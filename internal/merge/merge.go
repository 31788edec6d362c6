// Package merge collapses one dedup group into a single canonical
// entity. Every decision is driven by trust metadata and field-group
// classification; nothing in here may branch on a specific connector
// identity.
package merge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lenscan/lenscan/internal/model"
)

// placeholders are values treated as absent during scalar selection.
var placeholders = map[string]struct{}{
	"":        {},
	"n/a":     {},
	"na":      {},
	"none":    {},
	"null":    {},
	"unknown": {},
	"-":       {},
}

// IsPlaceholder reports whether a scalar value counts as absent.
func IsPlaceholder(s string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Merge deterministically merges the group members. Members are ordered
// by (-trust, connectorID, entityID), a total order with no possible
// ties, and every field group resolves against that order:
//
//   - scalars: first non-placeholder value wins
//   - geo: latitude and longitude taken together from the first member
//     possessing both, never interpolated independently
//   - canonical arrays: union, dedupe, lexicographic sort
//   - narrative text: longest non-placeholder value
//   - modules: deep recursive merge, keys present in only one source
//     are preserved
func Merge(members []model.ExtractedEntity, verifiedAt time.Time) model.MergedEntity {
	ordered := make([]model.ExtractedEntity, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.TrustLevel != b.TrustLevel {
			return a.TrustLevel > b.TrustLevel
		}
		if a.ConnectorID != b.ConnectorID {
			return a.ConnectorID < b.ConnectorID
		}
		return a.ID < b.ID
	})

	merged := model.MergedEntity{
		Primitives:  mergePrimitives(ordered),
		Dimensions:  mergeDimensions(ordered),
		Modules:     mergeModules(ordered),
		ExternalIDs: collectExternalIDs(ordered),
		Class:       ordered[0].Class,
		Provenance:  provenance(ordered, verifiedAt),
	}
	return merged
}

func mergePrimitives(ordered []model.ExtractedEntity) model.Primitives {
	var p model.Primitives

	scalar := func(get func(model.Primitives) string) string {
		for _, m := range ordered {
			if v := get(m.Primitives); !IsPlaceholder(v) {
				return v
			}
		}
		return ""
	}

	p.Name = scalar(func(p model.Primitives) string { return p.Name })
	p.GivenName = scalar(func(p model.Primitives) string { return p.GivenName })
	p.FamilyName = scalar(func(p model.Primitives) string { return p.FamilyName })
	p.StreetAddress = scalar(func(p model.Primitives) string { return p.StreetAddress })
	p.City = scalar(func(p model.Primitives) string { return p.City })
	p.Postcode = scalar(func(p model.Primitives) string { return p.Postcode })
	p.Country = scalar(func(p model.Primitives) string { return p.Country })
	p.Phone = scalar(func(p model.Primitives) string { return p.Phone })
	p.Website = scalar(func(p model.Primitives) string { return p.Website })
	p.Email = scalar(func(p model.Primitives) string { return p.Email })
	p.ExternalID = scalar(func(p model.Primitives) string { return p.ExternalID })

	// Geo pair moves as a unit from the highest-trust member that has
	// both coordinates.
	for _, m := range ordered {
		if m.Primitives.HasGeo() {
			lat, lng := *m.Primitives.Latitude, *m.Primitives.Longitude
			p.Latitude, p.Longitude = &lat, &lng
			break
		}
	}

	for _, m := range ordered {
		if m.Primitives.StartTime != nil {
			t := *m.Primitives.StartTime
			p.StartTime = &t
			break
		}
	}
	for _, m := range ordered {
		if m.Primitives.EndTime != nil {
			t := *m.Primitives.EndTime
			p.EndTime = &t
			break
		}
	}

	// Narrative field: longest non-placeholder wins, earlier member on
	// equal length.
	for _, m := range ordered {
		d := m.Primitives.Description
		if IsPlaceholder(d) {
			continue
		}
		if len(d) > len(p.Description) {
			p.Description = d
		}
	}

	return p
}

func mergeDimensions(ordered []model.ExtractedEntity) map[string][]string {
	union := map[string]map[string]struct{}{}
	for _, m := range ordered {
		for dim, values := range m.Dimensions {
			if union[dim] == nil {
				union[dim] = map[string]struct{}{}
			}
			for _, v := range values {
				union[dim][v] = struct{}{}
			}
		}
	}
	if len(union) == 0 {
		return nil
	}
	out := make(map[string][]string, len(union))
	for dim, set := range union {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out[dim] = values
	}
	return out
}

func mergeModules(ordered []model.ExtractedEntity) map[string]model.Module {
	var out map[string]model.Module
	for _, m := range ordered {
		for name, mod := range m.Modules {
			if out == nil {
				out = map[string]model.Module{}
			}
			if existing, ok := out[name]; ok {
				out[name] = model.Module(deepMergeMap(existing, mod))
			} else {
				out[name] = model.Module(deepMergeMap(map[string]any{}, mod))
			}
		}
	}
	return out
}

// deepMergeMap merges src into a copy of dst. Scalars follow the scalar
// rule (the earlier, higher-trust value stays), arrays union and dedupe,
// nested maps recurse, and a key present in only one source survives.
func deepMergeMap(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, sv := range src {
		dv, exists := out[k]
		if !exists {
			out[k] = sv
			continue
		}
		switch dval := dv.(type) {
		case map[string]any:
			if sval, ok := sv.(map[string]any); ok {
				out[k] = deepMergeMap(dval, sval)
			}
		case []any:
			if sval, ok := sv.([]any); ok {
				out[k] = unionSlices(dval, sval)
			}
		case string:
			if IsPlaceholder(dval) {
				out[k] = sv
			}
		default:
			// scalar already set by a higher-trust member, keep it
		}
	}
	return out
}

func unionSlices(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := map[string]struct{}{}
	add := func(v any) {
		key := stableKey(v)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	for _, v := range a {
		add(v)
	}
	for _, v := range b {
		add(v)
	}
	sort.Slice(out, func(i, j int) bool { return stableKey(out[i]) < stableKey(out[j]) })
	return out
}

func stableKey(v any) string {
	if s, ok := v.(string); ok {
		return "s:" + s
	}
	return "v:" + fmt.Sprint(v)
}

func collectExternalIDs(ordered []model.ExtractedEntity) map[string]string {
	var out map[string]string
	for _, m := range ordered {
		if m.Primitives.ExternalID == "" {
			continue
		}
		if out == nil {
			out = map[string]string{}
		}
		if _, ok := out[m.ConnectorID]; !ok {
			out[m.ConnectorID] = m.Primitives.ExternalID
		}
	}
	return out
}

func provenance(ordered []model.ExtractedEntity, verifiedAt time.Time) model.Provenance {
	var sources []string
	seen := map[string]struct{}{}
	for _, m := range ordered {
		if _, ok := seen[m.ConnectorID]; ok {
			continue
		}
		seen[m.ConnectorID] = struct{}{}
		sources = append(sources, m.ConnectorID)
	}
	return model.Provenance{
		Sources:       sources,
		PrimarySource: sources[0],
		VerifiedAt:    verifiedAt.UTC(),
	}
}
