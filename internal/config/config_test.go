package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr: got %q", cfg.Server.Addr)
	}
	if cfg.Cache.Capacity != 500 {
		t.Errorf("default cache capacity: got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("default cache ttl: got %s", cfg.Cache.TTL)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dishscan.yaml")
	body := "cache:\n  capacity: 42\nserver:\n  addr: \":9999\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Capacity != 42 {
		t.Errorf("file override lost: got %d", cfg.Cache.Capacity)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("file override lost: got %q", cfg.Server.Addr)
	}
	// Untouched key keeps its default.
	if cfg.Index.TopK != 5 {
		t.Errorf("default top_k lost: got %d", cfg.Index.TopK)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dishscan.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  capacity: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("DISHSCAN_CACHE_CAPACITY", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.Capacity != 7 {
		t.Errorf("env should win over file: got %d", cfg.Cache.Capacity)
	}
}

func TestLoad_InvalidRejected(t *testing.T) {
	t.Setenv("DISHSCAN_CACHE_CAPACITY", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for zero cache capacity")
	}
}

func TestEnvTransform(t *testing.T) {
	cases := map[string]string{
		"DISHSCAN_CACHE_TTL":          "cache.ttl",
		"DISHSCAN_INDEX_MAX_PER_DISH": "index.max_per_dish",
		"DISHSCAN_SERVER_ADDR":        "server.addr",
	}
	for in, want := range cases {
		if got := envTransform(in); got != want {
			t.Errorf("envTransform(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscalationAllowed(t *testing.T) {
	c := EscalationConfig{Enabled: true, Regions: []string{"br", "us"}}
	if !c.EscalationAllowed("BR") {
		t.Error("listed region should be allowed (case-insensitive)")
	}
	if c.EscalationAllowed("eu") {
		t.Error("unlisted region should be denied")
	}
	c.Regions = nil
	if !c.EscalationAllowed("anything") {
		t.Error("empty region list should allow all")
	}
	c.Enabled = false
	if c.EscalationAllowed("br") {
		t.Error("disabled escalation should deny all")
	}
}
