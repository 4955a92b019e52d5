package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("POLICY_CACHE_MAX_ITEMS", "")
	t.Setenv("GRAPH_CACHE_MAX_ITEMS", "")
	t.Setenv("MAX_FLOWS", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.PolicyCacheMaxItems != 1024 || cfg.GraphCacheMaxItems != 256 {
		t.Fatalf("unexpected cache sizes: %+v", cfg)
	}
	if cfg.MaxFlows != 10_000 {
		t.Fatalf("expected default max flows, got %d", cfg.MaxFlows)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("POLICY_CACHE_MAX_ITEMS", "16")
	t.Setenv("MAX_FLOWS", "100")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.HTTPAddr != ":9999" || cfg.PolicyCacheMaxItems != 16 || cfg.MaxFlows != 100 || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_RejectsInvalidInts(t *testing.T) {
	t.Setenv("POLICY_CACHE_MAX_ITEMS", "zero")
	t.Setenv("GRAPH_CACHE_MAX_ITEMS", "-5")

	cfg := Load()

	if cfg.PolicyCacheMaxItems != 1024 || cfg.GraphCacheMaxItems != 256 {
		t.Fatalf("expected fallbacks for invalid values: %+v", cfg)
	}
}

func TestLoadAnalysis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.yaml")
	content := `
mode: all-paths
source: init_t
target: shadow_t
depth_limit: 4
min_weight: 3
exclude: [tmp_t, var_t]
booleans: secure_mode=true
limit: 20
full: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := LoadAnalysis(path)
	if err != nil {
		t.Fatal(err)
	}

	if a.Mode != "all-paths" || a.Source != "init_t" || a.Target != "shadow_t" {
		t.Fatalf("unexpected query fields: %+v", a)
	}
	if a.DepthLimit != 4 || a.MinWeight != 3 || a.Limit != 20 || !a.Full {
		t.Fatalf("unexpected option fields: %+v", a)
	}
	if len(a.Exclude) != 2 || a.Exclude[0] != "tmp_t" {
		t.Fatalf("unexpected exclude: %+v", a.Exclude)
	}
	if a.Booleans != "secure_mode=true" {
		t.Fatalf("unexpected booleans: %q", a.Booleans)
	}
}

func TestLoadAnalysis_Errors(t *testing.T) {
	if _, err := LoadAnalysis(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("mode: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAnalysis(path); err == nil {
		t.Fatalf("expected error for invalid yaml")
	}
}
