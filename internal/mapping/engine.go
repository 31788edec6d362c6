// Package mapping applies a lens contract to extracted entities: mapping
// rules populate canonical dimensions, module triggers attach and fill
// module data. The engine is purely data-driven; the only dispatch is
// over the closed set of extractor-function tags.
package mapping

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lenscan/lenscan/internal/lens"
	"github.com/lenscan/lenscan/internal/model"
)

// Engine interprets entities through one loaded contract.
type Engine struct {
	contract *lens.Contract
}

// NewEngine creates an engine for a contract.
func NewEngine(contract *lens.Contract) *Engine {
	return &Engine{contract: contract}
}

// Apply returns a copy of the entity with canonical dimensions and
// modules populated. Dimension arrays are sets: values are only ever
// added, and the output arrays are sorted, so the result is identical
// for any rule evaluation order. The input entity is not mutated.
func (e *Engine) Apply(entity model.ExtractedEntity) model.ExtractedEntity {
	out := entity
	out.Dimensions = copyDimensions(entity.Dimensions)
	out.Confidence = copyConfidence(entity.Confidence)
	out.Modules = copyModules(entity.Modules)

	for i := range e.contract.MappingRules {
		rule := &e.contract.MappingRules[i]
		re := rule.Regexp()
		if re == nil {
			continue
		}
		for _, field := range rule.SourceFields {
			value := SourceFieldValue(out, field)
			if value == "" || !re.MatchString(value) {
				continue
			}
			addDimensionValue(&out, rule.Dimension, rule.Value, rule.Confidence)
			break
		}
	}

	for _, trigger := range e.contract.ModuleTriggers {
		if !intersects(out.Dimensions[trigger.Dimension], trigger.Values) {
			continue
		}
		for _, name := range trigger.Modules {
			if out.Modules == nil {
				out.Modules = map[string]model.Module{}
			}
			if _, ok := out.Modules[name]; !ok {
				out.Modules[name] = model.Module{}
			}
			e.populateModule(&out, name)
		}
	}

	for dim := range out.Dimensions {
		sort.Strings(out.Dimensions[dim])
	}
	return out
}

// populateModule runs the module's field rules in declared order. A rule
// only sets its field when no earlier rule already did.
func (e *Engine) populateModule(entity *model.ExtractedEntity, module string) {
	mod := entity.Modules[module]
	for i := range e.contract.ModuleFields[module] {
		rule := &e.contract.ModuleFields[module][i]
		if _, done := mod[rule.Field]; done {
			continue
		}
		for _, field := range rule.SourceFields {
			raw := SourceFieldValue(*entity, field)
			if raw == "" {
				continue
			}
			value, ok := runExtractor(rule, raw)
			if !ok {
				continue
			}
			mod[rule.Field] = value
			break
		}
	}
}

// runExtractor dispatches over the closed extractor tag set.
func runExtractor(rule *lens.FieldRule, raw string) (any, bool) {
	captured := raw
	if re := rule.Regexp(); re != nil {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return nil, false
		}
		if len(m) > 1 {
			captured = m[1]
		} else {
			captured = m[0]
		}
	}

	switch rule.Extractor {
	case lens.ExtractorRegexCapture:
		return strings.TrimSpace(captured), true
	case lens.ExtractorNumericParse:
		cleaned := strings.TrimSpace(strings.ReplaceAll(captured, ",", ""))
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case lens.ExtractorNormalize:
		return strings.ToLower(strings.Join(strings.Fields(captured), " ")), true
	}
	return nil, false
}

// SourceFieldValue resolves a rule's source field against primitives
// first, then observations.
func SourceFieldValue(entity model.ExtractedEntity, field string) string {
	p := entity.Primitives
	switch field {
	case "name":
		return p.Name
	case "given_name":
		return p.GivenName
	case "family_name":
		return p.FamilyName
	case "description":
		return p.Description
	case "street_address":
		return p.StreetAddress
	case "city":
		return p.City
	case "postcode":
		return p.Postcode
	case "country":
		return p.Country
	case "phone":
		return p.Phone
	case "website":
		return p.Website
	case "email":
		return p.Email
	case "external_id":
		return p.ExternalID
	}
	return entity.Observations[field]
}

func addDimensionValue(entity *model.ExtractedEntity, dimension, value string, confidence float64) {
	if entity.Dimensions == nil {
		entity.Dimensions = map[string][]string{}
	}
	for _, existing := range entity.Dimensions[dimension] {
		if existing == value {
			recordConfidence(entity, dimension, value, confidence)
			return
		}
	}
	entity.Dimensions[dimension] = append(entity.Dimensions[dimension], value)
	recordConfidence(entity, dimension, value, confidence)
}

func recordConfidence(entity *model.ExtractedEntity, dimension, value string, confidence float64) {
	if confidence == 0 {
		return
	}
	if entity.Confidence == nil {
		entity.Confidence = map[string]float64{}
	}
	key := dimension + "/" + value
	if confidence > entity.Confidence[key] {
		entity.Confidence[key] = confidence
	}
}

func intersects(have, want []string) bool {
	if len(have) == 0 || len(want) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, v := range have {
		set[v] = struct{}{}
	}
	for _, v := range want {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func copyDimensions(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func copyConfidence(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyModules(in map[string]model.Module) map[string]model.Module {
	if in == nil {
		return nil
	}
	out := make(map[string]model.Module, len(in))
	for k, v := range in {
		mod := make(model.Module, len(v))
		for mk, mv := range v {
			mod[mk] = mv
		}
		out[k] = mod
	}
	return out
}
