// Package storetest runs the store contract against a backend. Every backend
// test package calls Run with a factory; backend-specific behavior gets its
// own tests alongside.
package storetest

import (
	"context"
	"reflect"
	"testing"

	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store"
	"github.com/stefanzvkvc/chord/internal/timeutil"
)

// Factory builds a fresh, empty store stamping records with the given clock.
type Factory func(t *testing.T, clock timeutil.Clock) store.Store

// Run exercises the full store contract against the backend the factory
// produces. Each subtest gets its own store instance.
func Run(t *testing.T, newStore Factory) {
	t.Run("SnapshotLifecycle", func(t *testing.T) { testSnapshotLifecycle(t, newStore) })
	t.Run("SnapshotLastWriteWins", func(t *testing.T) { testSnapshotLastWriteWins(t, newStore) })
	t.Run("DeleteSnapshotIdempotent", func(t *testing.T) { testDeleteSnapshotIdempotent(t, newStore) })
	t.Run("DeltasAfter", func(t *testing.T) { testDeltasAfter(t, newStore) })
	t.Run("DeltaRoundTrip", func(t *testing.T) { testDeltaRoundTrip(t, newStore) })
	t.Run("DeleteDeltas", func(t *testing.T) { testDeleteDeltas(t, newStore) })
	t.Run("DeleteDeltasBefore", func(t *testing.T) { testDeleteDeltasBefore(t, newStore) })
	t.Run("TrimDeltas", func(t *testing.T) { testTrimDeltas(t, newStore) })
	t.Run("ListSnapshots", func(t *testing.T) { testListSnapshots(t, newStore) })
	t.Run("ListDeltas", func(t *testing.T) { testListDeltas(t, newStore) })
	t.Run("DeltaCounts", func(t *testing.T) { testDeltaCounts(t, newStore) })
}

func testSnapshotLifecycle(t *testing.T, newStore Factory) {
	clock := timeutil.NewMockClock(100)
	s := newStore(t, clock)
	ctx := context.Background()

	if _, err := s.GetSnapshot(ctx, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("GetSnapshot(missing) err = %v, want NOT_FOUND", err)
	}

	state := map[string]any{"status": "online", "prefs": map[string]any{"theme": "dark"}}
	if err := s.PutSnapshot(ctx, "user:alice", state, 1); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	snap, err := s.GetSnapshot(ctx, "user:alice")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.ContextID != "user:alice" || snap.Version != 1 || snap.InsertedAt != 100 {
		t.Errorf("snapshot = %+v, want context user:alice version 1 at 100", snap)
	}
	if !reflect.DeepEqual(snap.State, state) {
		t.Errorf("state = %v, want %v", snap.State, state)
	}

	if err := s.DeleteSnapshot(ctx, "user:alice"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, err := s.GetSnapshot(ctx, "user:alice"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetSnapshot after delete err = %v, want NOT_FOUND", err)
	}
}

func testSnapshotLastWriteWins(t *testing.T, newStore Factory) {
	clock := timeutil.NewMockClock(100)
	s := newStore(t, clock)
	ctx := context.Background()

	if err := s.PutSnapshot(ctx, "c", map[string]any{"a": "1"}, 1); err != nil {
		t.Fatalf("PutSnapshot v1: %v", err)
	}
	clock.Advance(10)
	if err := s.PutSnapshot(ctx, "c", map[string]any{"a": "2"}, 2); err != nil {
		t.Fatalf("PutSnapshot v2: %v", err)
	}

	snap, err := s.GetSnapshot(ctx, "c")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Version != 2 || snap.InsertedAt != 110 || snap.State["a"] != "2" {
		t.Errorf("snapshot = %+v, want version 2 at 110 with a=2", snap)
	}
}

func testDeleteSnapshotIdempotent(t *testing.T, newStore Factory) {
	s := newStore(t, timeutil.NewMockClock(0))
	ctx := context.Background()

	if err := s.DeleteSnapshot(ctx, "never-existed"); err != nil {
		t.Errorf("DeleteSnapshot(missing) = %v, want nil", err)
	}
	if err := s.DeleteDeltas(ctx, "never-existed"); err != nil {
		t.Errorf("DeleteDeltas(missing) = %v, want nil", err)
	}
}

func appendVersions(t *testing.T, s store.Store, contextID string, versions ...int64) {
	t.Helper()
	for _, v := range versions {
		d := delta.Delta{"v": delta.Change{Action: delta.ActionModified, Value: v, OldValue: v - 1}}
		if err := s.AppendDelta(context.Background(), contextID, d, v); err != nil {
			t.Fatalf("AppendDelta v%d: %v", v, err)
		}
	}
}

func testDeltasAfter(t *testing.T, newStore Factory) {
	s := newStore(t, timeutil.NewMockClock(0))
	ctx := context.Background()
	appendVersions(t, s, "c", 1, 2, 3, 4)

	recs, err := s.DeltasAfter(ctx, "c", 2)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if got := versionsOf(recs); !reflect.DeepEqual(got, []int64{3, 4}) {
		t.Errorf("DeltasAfter(2) versions = %v, want [3 4]", got)
	}

	// The boundary is exclusive.
	recs, err = s.DeltasAfter(ctx, "c", 4)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("DeltasAfter(4) = %v, want empty", recs)
	}

	recs, err = s.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if got := versionsOf(recs); !reflect.DeepEqual(got, []int64{1, 2, 3, 4}) {
		t.Errorf("DeltasAfter(0) versions = %v, want full ascending history", got)
	}

	recs, err = s.DeltasAfter(ctx, "unknown", 0)
	if err != nil {
		t.Fatalf("DeltasAfter(unknown): %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("DeltasAfter(unknown) = %v, want empty", recs)
	}
}

func testDeltaRoundTrip(t *testing.T, newStore Factory) {
	s := newStore(t, timeutil.NewMockClock(50))
	ctx := context.Background()

	d := delta.Diff(
		map[string]any{"a": "1", "m": map[string]any{"x": "1", "y": "2"}},
		map[string]any{"a": "2", "m": map[string]any{"x": "1"}},
	)
	if err := s.AppendDelta(ctx, "c", d, 7); err != nil {
		t.Fatalf("AppendDelta: %v", err)
	}

	recs, err := s.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("history = %v, want one record", recs)
	}
	rec := recs[0]
	if rec.ContextID != "c" || rec.Version != 7 || rec.InsertedAt != 50 {
		t.Errorf("record = %+v, want context c version 7 at 50", rec)
	}
	if !reflect.DeepEqual(rec.Delta, d) {
		t.Errorf("stored delta = %#v, want %#v", rec.Delta, d)
	}
}

func testDeleteDeltas(t *testing.T, newStore Factory) {
	s := newStore(t, timeutil.NewMockClock(0))
	ctx := context.Background()
	appendVersions(t, s, "c", 1, 2, 3)
	appendVersions(t, s, "other", 1)

	if err := s.DeleteDeltas(ctx, "c"); err != nil {
		t.Fatalf("DeleteDeltas: %v", err)
	}

	recs, err := s.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("history after delete = %v, want empty", recs)
	}

	recs, err = s.DeltasAfter(ctx, "other", 0)
	if err != nil {
		t.Fatalf("DeltasAfter(other): %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("other context history = %v, want untouched", recs)
	}
}

func testDeleteDeltasBefore(t *testing.T, newStore Factory) {
	clock := timeutil.NewMockClock(100)
	s := newStore(t, clock)
	ctx := context.Background()

	appendVersions(t, s, "c", 1, 2) // inserted at 100
	clock.Set(200)
	appendVersions(t, s, "c", 3) // inserted at 200

	removed, err := s.DeleteDeltasBefore(ctx, "c", 200)
	if err != nil {
		t.Fatalf("DeleteDeltasBefore: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	recs, err := s.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if got := versionsOf(recs); !reflect.DeepEqual(got, []int64{3}) {
		t.Errorf("remaining versions = %v, want [3]", got)
	}

	// Cutoff is exclusive; nothing left before 200.
	removed, err = s.DeleteDeltasBefore(ctx, "c", 200)
	if err != nil {
		t.Fatalf("DeleteDeltasBefore repeat: %v", err)
	}
	if removed != 0 {
		t.Errorf("repeat removed = %d, want 0", removed)
	}
}

func testTrimDeltas(t *testing.T, newStore Factory) {
	s := newStore(t, timeutil.NewMockClock(0))
	ctx := context.Background()
	appendVersions(t, s, "c", 1, 2, 3, 4, 5)

	removed, err := s.TrimDeltas(ctx, "c", 2)
	if err != nil {
		t.Fatalf("TrimDeltas: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	recs, err := s.DeltasAfter(ctx, "c", 0)
	if err != nil {
		t.Fatalf("DeltasAfter: %v", err)
	}
	if got := versionsOf(recs); !reflect.DeepEqual(got, []int64{4, 5}) {
		t.Errorf("kept versions = %v, want the two most recent", got)
	}

	removed, err = s.TrimDeltas(ctx, "c", 10)
	if err != nil {
		t.Fatalf("TrimDeltas keep>len: %v", err)
	}
	if removed != 0 {
		t.Errorf("trim with large keep removed %d, want 0", removed)
	}

	removed, err = s.TrimDeltas(ctx, "c", 0)
	if err != nil {
		t.Fatalf("TrimDeltas keep=0: %v", err)
	}
	if removed != 2 {
		t.Errorf("trim to zero removed %d, want 2", removed)
	}
}

func testListSnapshots(t *testing.T, newStore Factory) {
	clock := timeutil.NewMockClock(100)
	s := newStore(t, clock)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		clock.Set(int64(100 + i*10))
		if err := s.PutSnapshot(ctx, id, map[string]any{"n": id}, int64(i+1)); err != nil {
			t.Fatalf("PutSnapshot %s: %v", id, err)
		}
	}

	snaps, err := s.ListSnapshots(ctx, store.ListOptions{})
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if got := idsOf(snaps); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("default order ids = %v, want [a b c]", got)
	}

	snaps, err = s.ListSnapshots(ctx, store.ListOptions{Order: store.OrderDesc})
	if err != nil {
		t.Fatalf("ListSnapshots desc: %v", err)
	}
	if got := idsOf(snaps); !reflect.DeepEqual(got, []string{"c", "b", "a"}) {
		t.Errorf("desc ids = %v, want [c b a]", got)
	}

	cutoff := int64(120)
	snaps, err = s.ListSnapshots(ctx, store.ListOptions{OlderThan: &cutoff})
	if err != nil {
		t.Fatalf("ListSnapshots older-than: %v", err)
	}
	if got := idsOf(snaps); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("older-than ids = %v, want [a b]", got)
	}

	snaps, err = s.ListSnapshots(ctx, store.ListOptions{ContextID: "b"})
	if err != nil {
		t.Fatalf("ListSnapshots by id: %v", err)
	}
	if got := idsOf(snaps); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("by-id ids = %v, want [b]", got)
	}

	snaps, err = s.ListSnapshots(ctx, store.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListSnapshots page: %v", err)
	}
	if got := idsOf(snaps); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("page ids = %v, want [b]", got)
	}

	snaps, err = s.ListSnapshots(ctx, store.ListOptions{Offset: 10})
	if err != nil {
		t.Fatalf("ListSnapshots past end: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("past-end page = %v, want empty", snaps)
	}
}

func testListDeltas(t *testing.T, newStore Factory) {
	clock := timeutil.NewMockClock(100)
	s := newStore(t, clock)
	ctx := context.Background()

	appendVersions(t, s, "a", 1, 2)
	clock.Set(200)
	appendVersions(t, s, "b", 1)

	recs, err := s.ListDeltas(ctx, store.ListOptions{ContextID: "a"})
	if err != nil {
		t.Fatalf("ListDeltas: %v", err)
	}
	if got := versionsOf(recs); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Errorf("context a versions = %v, want [1 2]", got)
	}

	minVersion := int64(1)
	recs, err = s.ListDeltas(ctx, store.ListOptions{ContextID: "a", MinVersion: &minVersion})
	if err != nil {
		t.Fatalf("ListDeltas min-version: %v", err)
	}
	if got := versionsOf(recs); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("min-version versions = %v, want [2]", got)
	}

	cutoff := int64(200)
	recs, err = s.ListDeltas(ctx, store.ListOptions{OlderThan: &cutoff})
	if err != nil {
		t.Fatalf("ListDeltas older-than: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("older-than matched %d records, want the 2 from context a", len(recs))
	}
	for _, rec := range recs {
		if rec.ContextID != "a" {
			t.Errorf("older-than matched context %s, want only a", rec.ContextID)
		}
	}
}

func testDeltaCounts(t *testing.T, newStore Factory) {
	s := newStore(t, timeutil.NewMockClock(0))
	ctx := context.Background()

	counts, err := s.DeltaCounts(ctx)
	if err != nil {
		t.Fatalf("DeltaCounts: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("empty store counts = %v, want none", counts)
	}

	appendVersions(t, s, "a", 1, 2, 3)
	appendVersions(t, s, "b", 1)

	counts, err = s.DeltaCounts(ctx)
	if err != nil {
		t.Fatalf("DeltaCounts: %v", err)
	}
	want := map[string]int{"a": 3, "b": 1}
	if !reflect.DeepEqual(counts, want) {
		t.Errorf("counts = %v, want %v", counts, want)
	}
}

func versionsOf(recs []store.DeltaRecord) []int64 {
	out := make([]int64, len(recs))
	for i, rec := range recs {
		out[i] = rec.Version
	}
	return out
}

func idsOf(snaps []store.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, snap := range snaps {
		out[i] = snap.ContextID
	}
	return out
}
