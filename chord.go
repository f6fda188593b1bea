// Package chord is a versioned delta-synchronization engine: many readers
// and writers share named pieces of state ("contexts"), and a client that
// declares the version it last saw receives the full state, a coalesced
// delta, or nothing at all.
//
// Basic usage:
//
//	c, err := chord.New(chord.Options{})
//	if err != nil { ... }
//	defer c.Close()
//
//	c.Set(ctx, "user:1", map[string]any{"status": "online"})
//	out, _ := c.Sync(ctx, "user:1", nil) // full state
package chord

import (
	"context"
	"log/slog"
	"time"

	"github.com/stefanzvkvc/chord/internal/config"
	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/ops"
	"github.com/stefanzvkvc/chord/internal/scheduler"
	"github.com/stefanzvkvc/chord/internal/store"
	"github.com/stefanzvkvc/chord/internal/store/badgerstore"
	"github.com/stefanzvkvc/chord/internal/store/memory"
	"github.com/stefanzvkvc/chord/internal/store/sqlite"
)

// Re-exported types so embedding applications only import this package.
type (
	Config          = config.Config
	Snapshot        = store.Snapshot
	DeltaRecord     = store.DeltaRecord
	RestoredContext = store.RestoredContext
	ExportCallback  = store.ExportCallback
	RestoreProvider = store.RestoreProvider
	Delta           = delta.Delta
	Change          = delta.Change
	SyncOutput      = ops.SyncOutput
	SetOutput       = ops.SetOutput
	CleanupInput    = ops.CleanupInput
	CleanupOutput   = ops.CleanupOutput
)

// DefaultConfig returns the default configuration: in-memory backend,
// second-resolution timestamps, delta threshold 100, no TTLs, auto-delete
// off.
func DefaultConfig() *Config { return config.DefaultConfig() }

// LoadConfig loads baseDir/config.json merged over defaults.
func LoadConfig(baseDir string) (*Config, error) { return config.Load(baseDir) }

// Options configures New.
type Options struct {
	// Config is the configuration to use. Nil means DefaultConfig.
	Config *Config

	// Logger receives engine log output. Nil discards it.
	Logger *slog.Logger
}

// Chord owns a storage backend, the per-context write locks, and the
// eviction scheduler. It is safe for concurrent use.
type Chord struct {
	cfg    *config.Config
	store  store.Store
	locks  *contextLocks
	sched  *scheduler.Scheduler
	logger *slog.Logger
}

// New opens the configured backend and returns a ready engine.
func New(opts Options) (*Chord, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	} else {
		cfg = config.Merge(config.DefaultConfig(), cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Chord{
		cfg:    cfg,
		store:  st,
		locks:  newContextLocks(),
		logger: logger,
	}
	c.sched = scheduler.New(func(ctx context.Context, input ops.CleanupInput) (*ops.CleanupOutput, error) {
		return ops.Cleanup(ctx, c.store, c.cfg, input)
	}, logger)

	logger.Info("chord engine ready", "backend", cfg.Backend)
	return c, nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return sqlite.Init(cfg.Path, cfg.Clock, cfg.TimeUnit)
	case config.BackendBadger:
		return badgerstore.Open(badgerstore.Config{
			Path:       cfg.Path,
			InMemory:   cfg.Path == "",
			SyncWrites: true,
			Logger:     logger,
		}, cfg.Clock, cfg.TimeUnit)
	default:
		return memory.New(cfg.Clock, cfg.TimeUnit), nil
	}
}

// Close stops the scheduler and releases the backend.
func (c *Chord) Close() error {
	c.sched.Stop()
	return c.store.Close()
}

// Set replaces the full state of a context. A no-op write returns the
// current snapshot and an empty delta without a version bump.
func (c *Chord) Set(ctx context.Context, contextID string, state map[string]any) (*SetOutput, error) {
	release := c.locks.acquire(contextID)
	defer release()
	return ops.Set(ctx, c.store, ops.SetInput{ContextID: contextID, State: state})
}

// Update deep-merges a partial state into the current state and commits the
// result like Set.
func (c *Chord) Update(ctx context.Context, contextID string, partial map[string]any) (*SetOutput, error) {
	release := c.locks.acquire(contextID)
	defer release()
	return ops.Update(ctx, c.store, ops.UpdateInput{ContextID: contextID, Partial: partial})
}

// Get retrieves the current snapshot of a context.
func (c *Chord) Get(ctx context.Context, contextID string) (*Snapshot, error) {
	out, err := ops.Get(ctx, c.store, ops.GetInput{ContextID: contextID})
	if err != nil {
		return nil, err
	}
	return &out.Context, nil
}

// Delete removes a context's snapshot and entire delta history. Idempotent.
func (c *Chord) Delete(ctx context.Context, contextID string) error {
	release := c.locks.acquire(contextID)
	defer release()
	_, err := ops.Delete(ctx, c.store, ops.DeleteInput{ContextID: contextID})
	return err
}

// Sync decides what a client at the given version should receive: the full
// state, a coalesced delta, or no change. A nil clientVersion requests the
// full state.
func (c *Chord) Sync(ctx context.Context, contextID string, clientVersion *int64) (*SyncOutput, error) {
	return ops.Sync(ctx, c.store, c.cfg, ops.SyncInput{ContextID: contextID, ClientVersion: clientVersion})
}

// Export passes the current snapshot of a context to the configured export
// callback.
func (c *Chord) Export(ctx context.Context, contextID string) (*Snapshot, error) {
	out, err := ops.Export(ctx, c.store, c.cfg, ops.ExportInput{ContextID: contextID})
	if err != nil {
		return nil, err
	}
	return &out.Context, nil
}

// Restore overwrites a context's snapshot with state from the configured
// restore provider.
func (c *Chord) Restore(ctx context.Context, contextID string) (*Snapshot, error) {
	release := c.locks.acquire(contextID)
	defer release()
	out, err := ops.Restore(ctx, c.store, c.cfg, ops.RestoreInput{ContextID: contextID})
	if err != nil {
		return nil, err
	}
	return &out.Context, nil
}

// FormatDelta flattens a delta with the configured formatter.
func (c *Chord) FormatDelta(d Delta, contextID string, version, insertedAt int64) []delta.FlatChange {
	return c.cfg.Formatter.Format(d, delta.Metadata{
		ContextID:  contextID,
		Version:    version,
		InsertedAt: insertedAt,
	})
}

// Cleanup runs one eviction sweep.
func (c *Chord) Cleanup(ctx context.Context, input CleanupInput) (*CleanupOutput, error) {
	return ops.Cleanup(ctx, c.store, c.cfg, input)
}

// StartScheduler launches the recurring sweep. A non-positive interval uses
// the configured default.
func (c *Chord) StartScheduler(interval time.Duration, input CleanupInput) {
	if interval <= 0 {
		interval = time.Duration(c.cfg.SweepIntervalSeconds) * time.Second
	}
	c.sched.Start(interval, input)
}

// UpdateSchedulerInterval changes the running scheduler's interval.
func (c *Chord) UpdateSchedulerInterval(interval time.Duration) {
	c.sched.UpdateInterval(interval)
}

// UpdateSchedulerOptions changes the running scheduler's sweep options.
func (c *Chord) UpdateSchedulerOptions(input CleanupInput) {
	c.sched.UpdateOptions(input)
}

// StopScheduler halts the recurring sweep.
func (c *Chord) StopScheduler() {
	c.sched.Stop()
}
