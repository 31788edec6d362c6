package cli

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/lenscan/lenscan/internal/cache"
	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/extract"
	"github.com/lenscan/lenscan/internal/lens"
	"github.com/lenscan/lenscan/internal/llm"
	"github.com/lenscan/lenscan/internal/model"
	"github.com/lenscan/lenscan/internal/storage"
)

// Connector registry constants. Entries declare cost per call, trust
// level, phase, timeout and rate window; the planner consults them and
// the orchestrator enforces them.
const (
	connectorStatic    = "static"
	connectorWebscrape = "webscrape"
)

// buildConfig assembles the runtime configuration from viper and
// defaults.
func buildConfig() *model.Config {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		// A malformed config file should not silently fall back.
		fmt.Printf("Warning: unreadable configuration, using defaults: %v\n", err)
		return model.DefaultConfig()
	}
	return cfg
}

// buildRegistry registers the built-in connectors.
func buildRegistry(cfg *model.Config) (*connector.Registry, error) {
	registry := connector.NewRegistry()

	static := connector.NewStatic(connectorStatic, cfg.Connectors.FixtureDir)
	if err := registry.Register(connector.Entry{
		ID:          connectorStatic,
		CostPerCall: 0.005,
		TrustLevel:  0.9,
		Phase:       0,
		Timeout:     5 * time.Second,
		RatePerSec:  10,
		Burst:       10,
	}, static); err != nil {
		return nil, err
	}

	scrape := connector.NewWebscrape(connectorWebscrape, cfg.Connectors.Scrape, cfg.HTTP)
	if err := registry.Register(connector.Entry{
		ID:          connectorWebscrape,
		CostPerCall: 0.01,
		TrustLevel:  0.5,
		Phase:       1,
		Timeout:     cfg.HTTP.Timeout,
		RatePerSec:  1,
		Burst:       2,
	}, scrape); err != nil {
		return nil, err
	}

	return registry, nil
}

// buildExtractors pairs every registered connector with its extractor.
// The optional LLM sub-extractor only attaches to the webscrape path.
func buildExtractors(cfg *model.Config) (*extract.Registry, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("configure LLM provider: %w", err)
	}

	extractors := extract.NewRegistry()
	extractors.Register(extract.NewStaticExtractor(connectorStatic))

	var observer extract.TextObserver
	if sub := llm.NewSubExtractor(provider); sub != nil {
		observer = sub
	}
	extractors.Register(extract.NewWebExtractor(connectorWebscrape, observer))
	return extractors, nil
}

// buildCache returns the response cache, or nil when disabled. With a
// cache directory configured the memory layer sits over a disk layer.
func buildCache(cfg *model.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if cfg.Cache.Dir != "" {
		return cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
	}
	return cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
}

// openStore opens the SQLite store.
func openStore(cfg *model.Config) (*storage.Store, error) {
	return storage.NewStore(cfg.Storage.DataDir)
}

// loadContract loads and validates the lens document against the
// registered connectors. Fail-fast: a ConfigError here means zero
// connector calls were issued.
func loadContract(path string, registry *connector.Registry) (*lens.Contract, error) {
	return lens.LoadFile(path, registry.IDs())
}
