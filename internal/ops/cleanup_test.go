package ops

import (
	"context"
	"testing"

	"github.com/stefanzvkvc/chord/internal/config"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store/memory"
	"github.com/stefanzvkvc/chord/internal/timeutil"
)

func TestCleanup_ExpiredContexts(t *testing.T) {
	clock := timeutil.NewMockClock(1000)
	st := memory.New(clock, timeutil.Second)
	ctx := context.Background()

	mustSet(t, st, "old", map[string]any{"a": 1})
	clock.Set(1500)
	mustSet(t, st, "fresh", map[string]any{"a": 1})
	clock.Set(2000)

	cfg := config.DefaultConfig()
	cfg.Clock = clock
	cfg.ContextAutoDelete = true
	cfg.ContextTTL = 600 // "old" at age 1000 expires, "fresh" at 500 survives

	out, err := Cleanup(ctx, st, cfg, CleanupInput{})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if out.ContextsDeleted != 1 {
		t.Errorf("ContextsDeleted = %d, want 1", out.ContextsDeleted)
	}

	if _, err := Get(ctx, st, GetInput{ContextID: "old"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expired context still readable, err = %v", err)
	}
	if _, err := Get(ctx, st, GetInput{ContextID: "fresh"}); err != nil {
		t.Errorf("fresh context gone: %v", err)
	}
	recs, err := st.DeltasAfter(ctx, "old", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expired context kept history: %v", recs)
	}
}

func TestCleanup_ContextTTLRequiresAutoDelete(t *testing.T) {
	clock := timeutil.NewMockClock(0)
	st := memory.New(clock, timeutil.Second)
	ctx := context.Background()

	mustSet(t, st, "c", map[string]any{"a": 1})
	clock.Set(10000)

	cfg := config.DefaultConfig()
	cfg.Clock = clock
	cfg.ContextTTL = 1 // expired, but auto-delete is off

	out, err := Cleanup(ctx, st, cfg, CleanupInput{})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if out.ContextsDeleted != 0 {
		t.Errorf("ContextsDeleted = %d, want 0 without auto-delete", out.ContextsDeleted)
	}
	if _, err := Get(ctx, st, GetInput{ContextID: "c"}); err != nil {
		t.Errorf("context deleted without auto-delete: %v", err)
	}
}

func TestCleanup_AgedDeltas(t *testing.T) {
	clock := timeutil.NewMockClock(1000)
	st := memory.New(clock, timeutil.Second)
	ctx := context.Background()

	mustSet(t, st, "c", map[string]any{"n": 1}) // delta at 1000
	mustSet(t, st, "c", map[string]any{"n": 2}) // delta at 1000
	clock.Set(2000)
	mustSet(t, st, "c", map[string]any{"n": 3}) // delta at 2000

	cfg := config.DefaultConfig()
	cfg.Clock = clock
	cfg.DeltaTTL = 500 // cutoff 1500: the two deltas from 1000 expire

	out, err := Cleanup(ctx, st, cfg, CleanupInput{})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if out.DeltasExpired != 2 {
		t.Errorf("DeltasExpired = %d, want 2", out.DeltasExpired)
	}

	recs, err := st.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 1 || recs[0].Version != 3 {
		t.Errorf("remaining history = %v, want only version 3", recs)
	}

	// The snapshot itself is untouched by delta aging.
	if _, err := Get(ctx, st, GetInput{ContextID: "c"}); err != nil {
		t.Errorf("snapshot gone after delta aging: %v", err)
	}
}

func TestCleanup_TrimsOversizedHistories(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		mustSet(t, st, "c", map[string]any{"n": i})
	}

	cfg := config.DefaultConfig()
	cfg.Clock = timeutil.NewMockClock(0)
	cfg.DeltaThreshold = 4

	out, err := Cleanup(ctx, st, cfg, CleanupInput{})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if out.DeltasTrimmed != 6 {
		t.Errorf("DeltasTrimmed = %d, want 6", out.DeltasTrimmed)
	}

	recs, err := st.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 4 || recs[0].Version != 7 || recs[3].Version != 10 {
		t.Errorf("kept history = %v, want versions 7..10", recs)
	}
}

func TestCleanup_ScopedToOneContext(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		mustSet(t, st, "a", map[string]any{"n": i})
		mustSet(t, st, "b", map[string]any{"n": i})
	}

	cfg := config.DefaultConfig()
	cfg.Clock = timeutil.NewMockClock(0)
	cfg.DeltaThreshold = 2

	out, err := Cleanup(ctx, st, cfg, CleanupInput{ContextID: "a"})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if out.DeltasTrimmed != 3 {
		t.Errorf("DeltasTrimmed = %d, want 3 from context a only", out.DeltasTrimmed)
	}

	recs, err := st.DeltasAfter(ctx, "b", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 5 {
		t.Errorf("context b history length = %d, want untouched 5", len(recs))
	}
}

func TestCleanup_NothingConfiguredIsNoOp(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()
	mustSet(t, st, "c", map[string]any{"a": 1})

	cfg := config.DefaultConfig()
	cfg.Clock = timeutil.NewMockClock(0)
	cfg.DeltaThreshold = 0 // disable trimming too

	out, err := Cleanup(ctx, st, cfg, CleanupInput{})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if out.ContextsDeleted != 0 || out.DeltasExpired != 0 || out.DeltasTrimmed != 0 {
		t.Errorf("output = %+v, want all zero", out)
	}
}

func TestCleanup_SmallBatchStillSweepsAll(t *testing.T) {
	clock := timeutil.NewMockClock(0)
	st := memory.New(clock, timeutil.Second)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		mustSet(t, st, id, map[string]any{"x": 1})
	}
	clock.Set(10000)

	cfg := config.DefaultConfig()
	cfg.Clock = clock
	cfg.ContextAutoDelete = true
	cfg.ContextTTL = 1

	out, err := Cleanup(ctx, st, cfg, CleanupInput{BatchSize: 2})
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if out.ContextsDeleted != 5 {
		t.Errorf("ContextsDeleted = %d, want all 5 across batches", out.ContextsDeleted)
	}
}
