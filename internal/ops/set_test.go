package ops

import (
	"context"
	"reflect"
	"testing"

	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store"
	"github.com/stefanzvkvc/chord/internal/store/memory"
	"github.com/stefanzvkvc/chord/internal/timeutil"
)

func TestSet_CreatesContextAtVersionOne(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(100), timeutil.Second)
	ctx := context.Background()

	out, err := Set(ctx, st, SetInput{
		ContextID: "user:alice",
		State:     map[string]any{"status": "online"},
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	if out.Context.Version != 1 {
		t.Errorf("version = %d, want 1", out.Context.Version)
	}
	if out.Context.State["status"] != "online" {
		t.Errorf("state = %v, want status online", out.Context.State)
	}
	rec, ok := out.Delta["status"].(delta.Change)
	if !ok || rec.Action != delta.ActionAdded {
		t.Errorf("delta = %v, want status added", out.Delta)
	}

	recs, err := st.DeltasAfter(ctx, "user:alice", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 1 || recs[0].Version != 1 {
		t.Errorf("history = %v, want one record at version 1", recs)
	}
}

func TestSet_VersionIsMonotonic(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		out, err := Set(ctx, st, SetInput{
			ContextID: "c",
			State:     map[string]any{"n": i},
		})
		if err != nil {
			t.Fatalf("Set %d: %v", i, err)
		}
		if out.Context.Version != int64(i) {
			t.Fatalf("version after write %d = %d, want %d", i, out.Context.Version, i)
		}
	}
}

func TestSet_NoOpWriteDoesNotBumpVersion(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()
	state := map[string]any{"a": 1, "m": map[string]any{"x": 1}}

	if _, err := Set(ctx, st, SetInput{ContextID: "c", State: state}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	out, err := Set(ctx, st, SetInput{ContextID: "c", State: state})
	if err != nil {
		t.Fatalf("Set repeat: %v", err)
	}
	if out.Context.Version != 1 {
		t.Errorf("version after identical write = %d, want 1", out.Context.Version)
	}
	if len(out.Delta) != 0 {
		t.Errorf("delta = %v, want empty", out.Delta)
	}

	recs, err := st.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("history length = %d, want 1 (no-op must not append)", len(recs))
	}
}

func TestSet_ReplacesWholeState(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()

	mustSet(t, st, "c", map[string]any{"a": 1, "b": 2})
	out, err := Set(ctx, st, SetInput{ContextID: "c", State: map[string]any{"a": 1}})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, present := out.Context.State["b"]; present {
		t.Errorf("state = %v, want b removed by full replace", out.Context.State)
	}
	rec := out.Delta["b"].(delta.Change)
	if rec.Action != delta.ActionRemoved || rec.OldValue != 2 {
		t.Errorf("delta b = %+v, want removed with old value 2", rec)
	}
}

func TestSet_RejectsInvalidContextID(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)

	for _, id := range []string{"", "bad\x00id"} {
		_, err := Set(context.Background(), st, SetInput{ContextID: id, State: map[string]any{"a": 1}})
		if !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("Set(%q) err = %v, want INVALID_REQUEST", id, err)
		}
	}
}

func TestUpdate_DeepMergesPartialState(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()

	mustSet(t, st, "c", map[string]any{
		"status": "online",
		"prefs":  map[string]any{"theme": "dark", "lang": "en"},
	})

	out, err := Update(ctx, st, UpdateInput{
		ContextID: "c",
		Partial:   map[string]any{"prefs": map[string]any{"theme": "light"}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := map[string]any{
		"status": "online",
		"prefs":  map[string]any{"theme": "light", "lang": "en"},
	}
	if !reflect.DeepEqual(out.Context.State, want) {
		t.Errorf("state = %v, want %v", out.Context.State, want)
	}
	if out.Context.Version != 2 {
		t.Errorf("version = %d, want 2", out.Context.Version)
	}
}

func TestUpdate_NonMapValueReplacesField(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()

	mustSet(t, st, "c", map[string]any{"prefs": map[string]any{"theme": "dark"}})

	out, err := Update(ctx, st, UpdateInput{
		ContextID: "c",
		Partial:   map[string]any{"prefs": "disabled"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Context.State["prefs"] != "disabled" {
		t.Errorf("prefs = %v, want scalar replacement", out.Context.State["prefs"])
	}
}

func TestUpdate_MissingContextStartsEmpty(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)

	out, err := Update(context.Background(), st, UpdateInput{
		ContextID: "fresh",
		Partial:   map[string]any{"a": 1},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Context.Version != 1 || out.Context.State["a"] != 1 {
		t.Errorf("context = %+v, want version 1 with a=1", out.Context)
	}
}

func TestUpdate_EmptyPartialIsNoOp(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()

	mustSet(t, st, "c", map[string]any{"a": 1})
	out, err := Update(ctx, st, UpdateInput{ContextID: "c"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if out.Context.Version != 1 || len(out.Delta) != 0 {
		t.Errorf("output = %+v, want unchanged version 1 and empty delta", out)
	}
}

func TestGet_MissingContext(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)

	_, err := Get(context.Background(), st, GetInput{ContextID: "missing"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get err = %v, want NOT_FOUND", err)
	}
}

func TestDelete_RemovesSnapshotAndHistory(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)
	ctx := context.Background()

	mustSet(t, st, "c", map[string]any{"a": 1})
	mustSet(t, st, "c", map[string]any{"a": 2})

	out, err := Delete(ctx, st, DeleteInput{ContextID: "c"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if out.ContextID != "c" {
		t.Errorf("ContextID = %q, want c", out.ContextID)
	}

	if _, err := Get(ctx, st, GetInput{ContextID: "c"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want NOT_FOUND", err)
	}
	recs, err := st.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("history after delete = %v, want empty", recs)
	}
}

func TestDelete_MissingContextIsNoOp(t *testing.T) {
	st := memory.New(timeutil.NewMockClock(0), timeutil.Second)

	if _, err := Delete(context.Background(), st, DeleteInput{ContextID: "missing"}); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

// writeOrderStore records the order of history and snapshot writes.
type writeOrderStore struct {
	store.Store
	calls []string
}

func (s *writeOrderStore) AppendDelta(ctx context.Context, contextID string, d delta.Delta, version int64) error {
	s.calls = append(s.calls, "append_delta")
	return s.Store.AppendDelta(ctx, contextID, d, version)
}

func (s *writeOrderStore) PutSnapshot(ctx context.Context, contextID string, state map[string]any, version int64) error {
	s.calls = append(s.calls, "put_snapshot")
	return s.Store.PutSnapshot(ctx, contextID, state, version)
}

func TestSet_AppendsDeltaBeforeSnapshot(t *testing.T) {
	// A reader that sees the new snapshot must also see its delta in
	// history, so the delta has to land first.
	st := &writeOrderStore{Store: memory.New(timeutil.NewMockClock(0), timeutil.Second)}

	if _, err := Set(context.Background(), st, SetInput{ContextID: "c", State: map[string]any{"a": 1}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	want := []string{"append_delta", "put_snapshot"}
	if !reflect.DeepEqual(st.calls, want) {
		t.Errorf("write order = %v, want %v", st.calls, want)
	}
}

func mustSet(t *testing.T, st *memory.Memory, contextID string, state map[string]any) {
	t.Helper()
	if _, err := Set(context.Background(), st, SetInput{ContextID: contextID, State: state}); err != nil {
		t.Fatalf("Set %s: %v", contextID, err)
	}
}
