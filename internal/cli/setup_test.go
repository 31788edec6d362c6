package cli

import (
	"testing"

	"github.com/lenscan/lenscan/internal/cache"
	"github.com/lenscan/lenscan/internal/model"
)

func TestBuildCache(t *testing.T) {
	cfg := model.DefaultConfig()

	cfg.Cache.Enabled = false
	if c := buildCache(cfg); c != nil {
		t.Errorf("disabled cache should be nil, got %T", c)
	}

	cfg.Cache.Enabled = true
	cfg.Cache.Dir = ""
	if _, ok := buildCache(cfg).(*cache.MemoryCache); !ok {
		t.Error("no cache dir should give the memory cache")
	}

	cfg.Cache.Dir = t.TempDir()
	if _, ok := buildCache(cfg).(*cache.LayeredCache); !ok {
		t.Error("cache dir should give the layered cache")
	}
}

func TestApplyRunFlags_JSONPath(t *testing.T) {
	cfg := model.DefaultConfig()

	runJSON = ""
	applyRunFlags(cfg)
	if cfg.Output.JSONPath != "run.json" {
		t.Errorf("unset flag should keep the configured path, got %q", cfg.Output.JSONPath)
	}

	runJSON = "out.json"
	defer func() { runJSON = "" }()
	applyRunFlags(cfg)
	if cfg.Output.JSONPath != "out.json" {
		t.Errorf("flag should override the configured path, got %q", cfg.Output.JSONPath)
	}
}
