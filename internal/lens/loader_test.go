package lens

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConnectors = []string{"static", "webscrape"}

func TestLoadFile_Valid(t *testing.T) {
	c, err := LoadFile("testdata/padel.yaml", testConnectors)
	require.NoError(t, err)

	assert.Equal(t, "padel", c.Name)
	assert.Len(t, c.ConnectorRules, 2)
	assert.Equal(t, []string{"sport", "venue_type"}, c.DimensionNames())
	assert.Equal(t, []string{"court_booking"}, c.ModuleNames())
	assert.NotEmpty(t, c.Hash())

	// Patterns are compiled at load time.
	for i := range c.MappingRules {
		assert.NotNil(t, c.MappingRules[i].Regexp())
	}
}

func TestLoad_HashStable(t *testing.T) {
	data, err := os.ReadFile("testdata/padel.yaml")
	require.NoError(t, err)

	a, err := Load(data, "a.yaml", testConnectors)
	require.NoError(t, err)
	b, err := Load(data, "b.yaml", testConnectors)
	require.NoError(t, err)

	assert.Equal(t, a.Hash(), b.Hash())

	changed, err := Load(append([]byte("# note\n"), data...), "c.yaml", testConnectors)
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash(), changed.Hash())
}

func TestLoad_CollectsEveryProblem(t *testing.T) {
	doc := []byte(`
vocabulary:
  sports: [padel]
connectors:
  - connector: ghost
    triggers:
      - kind: sometimes
        group: missing_group
mapping_rules:
  - pattern: "(["
    dimension: ""
    value: unregistered
    source_fields: []
canonical_registry:
  padel:
    display: Padel
`)
	_, err := Load(doc, "bad.yaml", testConnectors)
	require.Error(t, err)

	cfgErr, ok := err.(*ConfigError)
	require.True(t, ok, "expected *ConfigError, got %T", err)
	assert.Equal(t, "bad.yaml", cfgErr.Source)

	// One failed load reports all of: missing name, unregistered
	// connector, unknown trigger kind, undeclared group, bad pattern,
	// unregistered value, missing dimension, empty source_fields.
	assert.GreaterOrEqual(t, len(cfgErr.Problems), 8)
}

func TestLoad_ModuleFieldsRequireTrigger(t *testing.T) {
	doc := []byte(`
name: x
module_fields:
  orphan_module:
    - field: f
      source_fields: [name]
      extractor: normalize
canonical_registry:
  padel:
    display: Padel
`)
	_, err := Load(doc, "orphan.yaml", testConnectors)
	require.Error(t, err)
	cfgErr := err.(*ConfigError)
	assert.Contains(t, cfgErr.Problems[0], "orphan_module")
}

func TestLoad_UnknownExtractorTag(t *testing.T) {
	doc := []byte(`
name: x
module_triggers:
  - dimension: sport
    values: [padel]
    modules: [booking]
module_fields:
  booking:
    - field: f
      source_fields: [name]
      extractor: llm_guess
canonical_registry:
  padel:
    display: Padel
`)
	_, err := Load(doc, "tag.yaml", testConnectors)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm_guess")
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load([]byte(": not yaml : ["), "junk.yaml", testConnectors)
	require.Error(t, err)
	_, ok := err.(*ConfigError)
	assert.True(t, ok)
}

func TestLoad_EmptyRegistry(t *testing.T) {
	_, err := Load([]byte("name: x\n"), "empty.yaml", testConnectors)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canonical_registry")
}

func TestForbiddenExtractionKeys(t *testing.T) {
	c, err := LoadFile("testdata/padel.yaml", testConnectors)
	require.NoError(t, err)

	forbidden := c.ForbiddenExtractionKeys()
	for _, key := range []string{"sport", "venue_type", "court_booking"} {
		_, ok := forbidden[key]
		assert.True(t, ok, "expected %q to be forbidden", key)
	}
	_, ok := forbidden["name"]
	assert.False(t, ok, "primitive fields are never forbidden")
}
