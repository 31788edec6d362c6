package lens

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a lens document from disk. knownConnectors is the set of
// connector IDs registered in this build; every connector rule must
// reference one of them.
func LoadFile(path string, knownConnectors []string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lens: %w", err)
	}
	return Load(data, path, knownConnectors)
}

// Load parses and validates a lens document. Validation is exhaustive:
// every problem in the document is collected before failing, and a failed
// load never returns a partially usable contract.
func Load(data []byte, source string, knownConnectors []string) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &ConfigError{Source: source, Problems: []string{fmt.Sprintf("malformed document: %v", err)}}
	}

	problems := validate(&c, data, knownConnectors)
	if len(problems) > 0 {
		return nil, &ConfigError{Source: source, Problems: problems}
	}

	sum := sha256.Sum256(data)
	c.hash = hex.EncodeToString(sum[:])
	return &c, nil
}

func validate(c *Contract, data []byte, knownConnectors []string) []string {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Name == "" {
		addf("missing lens name")
	}
	if len(c.CanonicalRegistry) == 0 {
		addf("empty canonical_registry")
	}
	if dup := duplicateRegistryKeys(data); dup != "" {
		addf("duplicate canonical registry key %q", dup)
	}

	known := map[string]struct{}{}
	for _, id := range knownConnectors {
		known[id] = struct{}{}
	}
	for i, cr := range c.ConnectorRules {
		if _, ok := known[cr.Connector]; !ok {
			addf("connectors[%d]: unregistered connector %q", i, cr.Connector)
		}
		for j, tr := range cr.Triggers {
			switch tr.Kind {
			case TriggerAnyKeywords, TriggerAllKeywords, TriggerLocationContext:
			default:
				addf("connectors[%d].triggers[%d]: unknown kind %q", i, j, tr.Kind)
			}
			if tr.Group != "" {
				if _, ok := c.Vocabulary[tr.Group]; !ok {
					addf("connectors[%d].triggers[%d]: undeclared vocabulary group %q", i, j, tr.Group)
				}
			}
		}
	}

	for i := range c.MappingRules {
		r := &c.MappingRules[i]
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			addf("mapping_rules[%d]: pattern does not compile: %v", i, err)
		} else {
			r.re = re
		}
		if _, ok := c.CanonicalRegistry[r.Value]; !ok {
			addf("mapping_rules[%d]: value %q not in canonical_registry", i, r.Value)
		}
		if r.Dimension == "" {
			addf("mapping_rules[%d]: missing dimension", i)
		}
		if len(r.SourceFields) == 0 {
			addf("mapping_rules[%d]: no source_fields", i)
		}
	}

	for i, t := range c.ModuleTriggers {
		if t.Dimension == "" {
			addf("module_triggers[%d]: missing dimension", i)
		}
		for _, v := range t.Values {
			if _, ok := c.CanonicalRegistry[v]; !ok {
				addf("module_triggers[%d]: value %q not in canonical_registry", i, v)
			}
		}
		if len(t.Modules) == 0 {
			addf("module_triggers[%d]: no modules", i)
		}
	}

	declaredModules := map[string]struct{}{}
	for _, t := range c.ModuleTriggers {
		for _, m := range t.Modules {
			declaredModules[m] = struct{}{}
		}
	}
	for mod, rules := range c.ModuleFields {
		if _, ok := declaredModules[mod]; !ok {
			addf("module_fields: module %q has no trigger", mod)
		}
		for i := range rules {
			r := &rules[i]
			switch r.Extractor {
			case ExtractorRegexCapture, ExtractorNumericParse, ExtractorNormalize:
			default:
				addf("module_fields[%s][%d]: unknown extractor %q", mod, i, r.Extractor)
			}
			if r.Pattern != "" {
				re, err := regexp.Compile(r.Pattern)
				if err != nil {
					addf("module_fields[%s][%d]: pattern does not compile: %v", mod, i, err)
				} else {
					r.re = re
				}
			}
			if len(r.SourceFields) == 0 {
				addf("module_fields[%s][%d]: no source_fields", mod, i)
			}
		}
	}

	return problems
}

// duplicateRegistryKeys walks the raw document because map unmarshalling
// silently keeps the last duplicate key.
func duplicateRegistryKeys(data []byte) string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return ""
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "canonical_registry" {
			continue
		}
		registry := root.Content[i+1]
		if registry.Kind != yaml.MappingNode {
			return ""
		}
		seen := map[string]struct{}{}
		for j := 0; j+1 < len(registry.Content); j += 2 {
			key := registry.Content[j].Value
			if _, ok := seen[key]; ok {
				return key
			}
			seen[key] = struct{}{}
		}
	}
	return ""
}
