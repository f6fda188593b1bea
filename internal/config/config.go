// Package config holds the explicit configuration object every component is
// constructed with: serializable knobs loaded from baseDir/config.json plus
// runtime collaborators (clock, export callback, restore provider, delta
// formatter) injected by the embedding application. There is no ambient
// global lookup.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/store"
	"github.com/stefanzvkvc/chord/internal/timeutil"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds application configuration.
type Config struct {
	// Backend selects the storage backend: memory, sqlite, or badger.
	Backend string `json:"backend,omitempty"`

	// Path is the data directory for persistent backends.
	// Defaults to ~/.chord when empty.
	Path string `json:"path,omitempty"`

	// TimeUnit is the resolution of stored timestamps: second or millisecond.
	// Fixed per process; TTLs below are expressed in this unit.
	TimeUnit timeutil.Unit `json:"time_unit,omitempty"`

	// DeltaThreshold is the retention window for incremental sync: a client
	// more than this many versions behind receives a full snapshot, and the
	// eviction sweep trims histories down to this length.
	DeltaThreshold int `json:"delta_threshold,omitempty"`

	// DeltaTTL expires delta history entries older than this age.
	// 0 disables age-based delta eviction.
	DeltaTTL int64 `json:"delta_ttl,omitempty"`

	// ContextTTL expires whole contexts (snapshot and history) older than
	// this age when ContextAutoDelete is set. 0 disables it.
	ContextTTL int64 `json:"context_ttl,omitempty"`

	// ContextAutoDelete enables context-level eviction during sweeps.
	ContextAutoDelete bool `json:"context_auto_delete,omitempty"`

	// SweepIntervalSeconds is the scheduler's default re-arm interval.
	SweepIntervalSeconds int `json:"sweep_interval_seconds,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// Runtime collaborators, never serialized.

	// Clock is the time source. Defaults to the system clock.
	Clock timeutil.Clock `json:"-"`

	// ExportCallback receives snapshots on Export. Export without one is an error.
	ExportCallback store.ExportCallback `json:"-"`

	// RestoreProvider supplies cold-storage state on Restore. Restore
	// without one is an error.
	RestoreProvider store.RestoreProvider `json:"-"`

	// Formatter flattens deltas for presentation. Defaults to TableFormatter.
	Formatter delta.Formatter `json:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:              BackendMemory,
		TimeUnit:             timeutil.Second,
		DeltaThreshold:       100,
		SweepIntervalSeconds: 3600,
		Clock:                timeutil.SystemClock{},
		Formatter:            delta.TableFormatter{},
	}
}

// Load loads configuration from baseDir/config.json, merged over defaults.
// Returns the default config if the file doesn't exist. The baseDir
// parameter allows tests to use t.TempDir() instead of ~/.chord.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs. Overlay values take precedence
// for non-zero scalars and non-nil collaborators; arrays are merged and
// deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Backend = overlay.Backend
	if result.Backend == "" {
		result.Backend = base.Backend
	}
	result.Path = overlay.Path
	if result.Path == "" {
		result.Path = base.Path
	}
	result.TimeUnit = overlay.TimeUnit
	if result.TimeUnit == "" {
		result.TimeUnit = base.TimeUnit
	}
	result.DeltaThreshold = overlay.DeltaThreshold
	if result.DeltaThreshold == 0 {
		result.DeltaThreshold = base.DeltaThreshold
	}
	result.DeltaTTL = overlay.DeltaTTL
	if result.DeltaTTL == 0 {
		result.DeltaTTL = base.DeltaTTL
	}
	result.ContextTTL = overlay.ContextTTL
	if result.ContextTTL == 0 {
		result.ContextTTL = base.ContextTTL
	}
	result.SweepIntervalSeconds = overlay.SweepIntervalSeconds
	if result.SweepIntervalSeconds == 0 {
		result.SweepIntervalSeconds = base.SweepIntervalSeconds
	}

	result.ContextAutoDelete = base.ContextAutoDelete || overlay.ContextAutoDelete

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	result.Clock = overlay.Clock
	if result.Clock == nil {
		result.Clock = base.Clock
	}
	result.ExportCallback = overlay.ExportCallback
	if result.ExportCallback == nil {
		result.ExportCallback = base.ExportCallback
	}
	result.RestoreProvider = overlay.RestoreProvider
	if result.RestoreProvider == nil {
		result.RestoreProvider = base.RestoreProvider
	}
	result.Formatter = overlay.Formatter
	if result.Formatter == nil {
		result.Formatter = base.Formatter
	}

	return result
}

// Validate reports configuration errors an embedding application should fail
// fast on.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQLite, BackendBadger:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if !c.TimeUnit.Valid() {
		return fmt.Errorf("unknown time unit %q", c.TimeUnit)
	}
	if c.DeltaThreshold < 0 {
		return fmt.Errorf("delta_threshold must not be negative")
	}
	if c.DeltaTTL < 0 || c.ContextTTL < 0 {
		return fmt.Errorf("ttls must not be negative")
	}
	return nil
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
