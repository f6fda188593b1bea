package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stefanzvkvc/chord/internal/store"
	"github.com/stefanzvkvc/chord/internal/store/storetest"
	"github.com/stefanzvkvc/chord/internal/timeutil"
)

func newTestStore(t *testing.T, clock timeutil.Clock) store.Store {
	t.Helper()
	s, err := Init(t.TempDir(), clock, timeutil.Second)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_Contract(t *testing.T) {
	storetest.Run(t, newTestStore)
}

func TestSQLite_InitCreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Init(dir, timeutil.NewMockClock(0), timeutil.Second)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, dbFileName)); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestSQLite_ReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	clock := timeutil.NewMockClock(100)

	s, err := Init(dir, clock, timeutil.Second)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := context.Background()
	if err := s.PutSnapshot(ctx, "c", map[string]any{"a": "1"}, 3); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Init(dir, clock, timeutil.Second)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	snap, err := s.GetSnapshot(ctx, "c")
	if err != nil {
		t.Fatalf("GetSnapshot after reopen: %v", err)
	}
	if snap.Version != 3 || snap.State["a"] != "1" {
		t.Errorf("snapshot = %+v, want version 3 with a=1", snap)
	}
}
