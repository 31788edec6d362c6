package lens

import (
	"fmt"
	"regexp"
	"sort"
)

// Trigger kinds evaluated by the planner against query features.
const (
	TriggerAnyKeywords     = "any_keywords"
	TriggerAllKeywords     = "all_keywords"
	TriggerLocationContext = "location_context"
)

// Extractor function tags form a small closed set; the mapping engine
// dispatches over these and nothing else.
const (
	ExtractorRegexCapture = "regex_capture"
	ExtractorNumericParse = "numeric_parse"
	ExtractorNormalize    = "normalize"
)

// Contract is a loaded, validated, immutable lens. It is the only place
// vocabulary, patterns and thresholds are allowed to live; pipeline code
// stays domain-blind.
type Contract struct {
	Name              string                    `yaml:"name"`
	Vocabulary        map[string][]string       `yaml:"vocabulary"`
	ConnectorRules    []ConnectorRule           `yaml:"connectors"`
	MappingRules      []MappingRule             `yaml:"mapping_rules"`
	ModuleTriggers    []ModuleTrigger           `yaml:"module_triggers"`
	ModuleFields      map[string][]FieldRule    `yaml:"module_fields"`
	CanonicalRegistry map[string]CanonicalValue `yaml:"canonical_registry"`

	hash string
}

// ConnectorRule routes a connector based on query features.
type ConnectorRule struct {
	Connector string    `yaml:"connector"`
	Priority  int       `yaml:"priority"`
	Triggers  []Trigger `yaml:"triggers"`
}

// Trigger is one predicate over query features.
type Trigger struct {
	Kind      string   `yaml:"kind"`
	Group     string   `yaml:"group"`
	Keywords  []string `yaml:"keywords"`
	Threshold int      `yaml:"threshold"`
}

// MappingRule adds a canonical value to a dimension when its pattern
// matches any of the declared source fields.
type MappingRule struct {
	Pattern      string   `yaml:"pattern"`
	Dimension    string   `yaml:"dimension"`
	Value        string   `yaml:"value"`
	SourceFields []string `yaml:"source_fields"`
	Confidence   float64  `yaml:"confidence"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern. Compilation happens at load time;
// a nil return here indicates the contract was built outside Load.
func (r *MappingRule) Regexp() *regexp.Regexp { return r.re }

// ModuleTrigger attaches modules when a dimension's values intersect the
// declared value set.
type ModuleTrigger struct {
	Dimension string   `yaml:"dimension"`
	Values    []string `yaml:"values"`
	Modules   []string `yaml:"modules"`
}

// FieldRule populates one module field from primitives or observations.
type FieldRule struct {
	Field        string   `yaml:"field"`
	Pattern      string   `yaml:"pattern"`
	SourceFields []string `yaml:"source_fields"`
	Extractor    string   `yaml:"extractor"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern, nil when the rule declares none.
func (r *FieldRule) Regexp() *regexp.Regexp { return r.re }

// CanonicalValue is display metadata for one registered canonical value.
type CanonicalValue struct {
	Display     string `yaml:"display"`
	Description string `yaml:"description"`
}

// Hash is the stable content hash of the contract document. Identical
// contract text always yields the same hash.
func (c *Contract) Hash() string { return c.hash }

// DimensionNames returns the sorted set of dimensions any mapping rule
// may populate.
func (c *Contract) DimensionNames() []string {
	set := map[string]struct{}{}
	for _, r := range c.MappingRules {
		set[r.Dimension] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ModuleNames returns the sorted set of modules any trigger may attach.
func (c *Contract) ModuleNames() []string {
	set := map[string]struct{}{}
	for _, t := range c.ModuleTriggers {
		for _, m := range t.Modules {
			set[m] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForbiddenExtractionKeys returns every key an extractor must not emit:
// canonical dimension names and module names. The extraction boundary
// check consults this set.
func (c *Contract) ForbiddenExtractionKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	for _, n := range c.DimensionNames() {
		keys[n] = struct{}{}
	}
	for _, n := range c.ModuleNames() {
		keys[n] = struct{}{}
	}
	return keys
}

// ConfigError is a fatal lens validation failure. It aggregates every
// problem found so authors fix the document in one pass.
type ConfigError struct {
	Source   string
	Problems []string
}

func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("lens %s: %s", e.Source, e.Problems[0])
	}
	return fmt.Sprintf("lens %s: %d problems, first: %s", e.Source, len(e.Problems), e.Problems[0])
}
