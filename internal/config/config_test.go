package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stefanzvkvc/chord/internal/timeutil"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Backend)
	}
	if cfg.TimeUnit != timeutil.Second {
		t.Errorf("TimeUnit = %q, want second", cfg.TimeUnit)
	}
	if cfg.DeltaThreshold != 100 {
		t.Errorf("DeltaThreshold = %d, want 100", cfg.DeltaThreshold)
	}
	if cfg.SweepIntervalSeconds != 3600 {
		t.Errorf("SweepIntervalSeconds = %d, want 3600", cfg.SweepIntervalSeconds)
	}
	if cfg.Clock == nil || cfg.Formatter == nil {
		t.Error("default clock and formatter must be set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	raw := `{
		"backend": "badger",
		"delta_threshold": 25,
		"context_ttl": 7200,
		"context_auto_delete": true,
		"disabled_tools": ["context_export"]
	}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Backend != BackendBadger {
		t.Errorf("Backend = %q, want badger", cfg.Backend)
	}
	if cfg.DeltaThreshold != 25 {
		t.Errorf("DeltaThreshold = %d, want 25", cfg.DeltaThreshold)
	}
	if cfg.ContextTTL != 7200 || !cfg.ContextAutoDelete {
		t.Errorf("context eviction = (%d, %v), want (7200, true)", cfg.ContextTTL, cfg.ContextAutoDelete)
	}
	if !reflect.DeepEqual(cfg.DisabledTools, []string{"context_export"}) {
		t.Errorf("DisabledTools = %v, want [context_export]", cfg.DisabledTools)
	}
	// Unset fields keep their defaults.
	if cfg.TimeUnit != timeutil.Second || cfg.SweepIntervalSeconds != 3600 {
		t.Errorf("unset fields changed: unit=%q sweep=%d", cfg.TimeUnit, cfg.SweepIntervalSeconds)
	}
	if cfg.Clock == nil || cfg.Formatter == nil {
		t.Error("collaborators must fall back to defaults")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(dir); err == nil {
		t.Error("Load of invalid JSON must fail")
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.DisabledTools = []string{"context_export"}

	overlay := &Config{
		Backend:       BackendSQLite,
		Path:          "/tmp/chord-test",
		DeltaTTL:      300,
		DisabledTools: []string{"context_cleanup", "context_export"},
		Clock:         timeutil.NewMockClock(5),
	}

	got := Merge(base, overlay)

	if got.Backend != BackendSQLite || got.Path != "/tmp/chord-test" {
		t.Errorf("overlay scalars lost: backend=%q path=%q", got.Backend, got.Path)
	}
	if got.DeltaTTL != 300 {
		t.Errorf("DeltaTTL = %d, want 300", got.DeltaTTL)
	}
	if got.DeltaThreshold != 100 || got.TimeUnit != timeutil.Second {
		t.Errorf("base scalars lost: threshold=%d unit=%q", got.DeltaThreshold, got.TimeUnit)
	}
	if !reflect.DeepEqual(got.DisabledTools, []string{"context_export", "context_cleanup"}) {
		t.Errorf("DisabledTools = %v, want merged dedup", got.DisabledTools)
	}
	if got.Clock.Now(timeutil.Second) != 5 {
		t.Error("overlay clock lost")
	}
	if got.Formatter == nil {
		t.Error("base formatter lost")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"sqlite backend", func(c *Config) { c.Backend = BackendSQLite }, false},
		{"unknown backend", func(c *Config) { c.Backend = "redis" }, true},
		{"unknown time unit", func(c *Config) { c.TimeUnit = "fortnight" }, true},
		{"negative threshold", func(c *Config) { c.DeltaThreshold = -1 }, true},
		{"negative ttl", func(c *Config) { c.ContextTTL = -1 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
