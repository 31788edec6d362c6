// Package dedup groups one run's extracted entities into identity
// groups through four tiers of decreasing confidence. Each tier only
// sees entities no earlier tier managed to group, and the resulting
// grouping is invariant to input collection order.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"

	"github.com/lenscan/lenscan/internal/model"
)

// Tier thresholds and limits. The source material leaves exact values
// open; these are the documented choices.
const (
	// GeoProximityMeters bounds tier-2 coordinate matching.
	GeoProximityMeters = 150.0
	// GeoNameThreshold is the similarity floor when geo corroborates.
	GeoNameThreshold = 0.70
	// NameOnlyThreshold is the similarity floor without coordinates.
	NameOnlyThreshold = 0.85
)

// Group partitions the batch into dedup groups. Entities no tier
// grouped become singleton groups. Output is sorted by group key and
// does not depend on the order of entities.
func Group(entities []model.ExtractedEntity) []model.DedupGroup {
	sorted := make([]model.ExtractedEntity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	uf := newUnionFind(len(sorted))
	active := make([]bool, len(sorted))
	for i := range active {
		active[i] = true
	}

	tiers := []func(a, b model.ExtractedEntity) bool{
		matchExternalID,
		matchGeoAndName,
		matchNameWithoutGeo,
		matchFingerprint,
	}

	for _, match := range tiers {
		// A tier places still-ungrouped entities: pairs where both
		// sides already belong to multi-member groups are skipped, but
		// a residual entity may join an existing group, which keeps
		// grouping transitive across tiers.
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				if !active[i] && !active[j] {
					continue
				}
				if match(sorted[i], sorted[j]) {
					uf.union(i, j)
				}
			}
		}
		counts := map[int]int{}
		for i := range sorted {
			counts[uf.find(i)]++
		}
		for i := range sorted {
			if counts[uf.find(i)] > 1 {
				active[i] = false
			}
		}
	}

	members := map[int][]string{}
	for i := range sorted {
		root := uf.find(i)
		members[root] = append(members[root], sorted[i].ID)
	}

	groups := make([]model.DedupGroup, 0, len(members))
	for _, ids := range members {
		sort.Strings(ids)
		groups = append(groups, model.DedupGroup{Key: ids[0], Members: ids})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// Tier 1: a shared external identifier is the strongest signal.
// External IDs are namespaced per connector, so an ID only asserts
// identity against the connector that issued it.
func matchExternalID(a, b model.ExtractedEntity) bool {
	return a.Primitives.ExternalID != "" &&
		a.ConnectorID == b.ConnectorID &&
		a.Primitives.ExternalID == b.Primitives.ExternalID
}

// Tier 2: close coordinates corroborated by similar names.
func matchGeoAndName(a, b model.ExtractedEntity) bool {
	if !a.Primitives.HasGeo() || !b.Primitives.HasGeo() {
		return false
	}
	d := haversineMeters(*a.Primitives.Latitude, *a.Primitives.Longitude,
		*b.Primitives.Latitude, *b.Primitives.Longitude)
	if d > GeoProximityMeters {
		return false
	}
	return NameSimilarity(a.Primitives.Name, b.Primitives.Name) >= GeoNameThreshold
}

// Tier 3: name similarity alone, only when neither side has coordinates
// to contradict it.
func matchNameWithoutGeo(a, b model.ExtractedEntity) bool {
	if a.Primitives.HasGeo() || b.Primitives.HasGeo() {
		return false
	}
	return NameSimilarity(a.Primitives.Name, b.Primitives.Name) >= NameOnlyThreshold
}

// Tier 4: identical contact fingerprint.
func matchFingerprint(a, b model.ExtractedEntity) bool {
	fa, oka := Fingerprint(a.Primitives)
	fb, okb := Fingerprint(b.Primitives)
	return oka && okb && fa == fb
}

// Fingerprint hashes the normalized (address, phone, website) triple.
// The second return is false when every component is empty. A city or
// postcode without a street address is too coarse to count as an
// address component.
func Fingerprint(p model.Primitives) (string, bool) {
	addr := ""
	if p.StreetAddress != "" {
		addr = NormalizeName(p.StreetAddress + " " + p.City + " " + p.Postcode)
	}
	if addr == "" && p.Phone == "" && p.Website == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(addr + "|" + p.Phone + "|" + p.Website))
	return hex.EncodeToString(sum[:]), true
}

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
