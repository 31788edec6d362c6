package model

import "time"

// Config holds the complete runtime configuration.
// Values come from (highest to lowest priority): CLI flags, LENSCAN_*
// environment variables, ~/.lenscan/config.yaml, defaults.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Run         RunConfig         `yaml:"run" mapstructure:"run"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Connectors  ConnectorsConfig  `yaml:"connectors" mapstructure:"connectors"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// HTTPConfig controls outbound HTTP behaviour for fetching connectors.
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	InsecureTLS  bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// RunConfig controls planning and orchestration.
type RunConfig struct {
	// Budget is the total cost the planner may spend on one run.
	Budget float64 `yaml:"budget" mapstructure:"budget"`
	// CallTimeout bounds a single connector call when the registry entry
	// does not declare its own timeout.
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
}

// CacheConfig controls the connector response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
	// Dir enables the disk layer: cached responses survive restarts
	// and are promoted back into memory on first hit.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StorageConfig locates the SQLite store.
type StorageConfig struct {
	// DataDir defaults to ~/.lenscan/data.
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// LLMConfig configures the optional text sub-extractor. Disabled unless a
// provider is set. The deterministic pipeline never depends on it.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ConnectorsConfig holds per-connector settings keyed by connector ID.
type ConnectorsConfig struct {
	// FixtureDir is where the static connector reads its payloads from.
	FixtureDir string `yaml:"fixture_dir" mapstructure:"fixture_dir"`
	// Scrape lists seed URL templates for the webscrape connector;
	// "{query}" is substituted with the URL-escaped query.
	Scrape []string `yaml:"scrape" mapstructure:"scrape"`
}

// OutputConfig controls run artifacts.
type OutputConfig struct {
	JSONPath string `yaml:"json_path" mapstructure:"json_path"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "Lenscan/0.1 (+https://github.com/lenscan/lenscan)",
			MaxBodyBytes: 2_000_000,
		},
		Run: RunConfig{
			Budget:      0.25,
			CallTimeout: 20 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     15 * time.Minute,
		},
		Storage: StorageConfig{},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 1000,
		},
		Output: OutputConfig{
			JSONPath: "run.json",
		},
	}
}
