// Package memory provides the in-process reference implementation of the
// versioned store contract: mutex-guarded maps with version-ordered delta
// slices. It is the default backend and the one the others are measured
// against in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store"
	"github.com/stefanzvkvc/chord/internal/timeutil"
)

// Memory is an in-process versioned store.
type Memory struct {
	mu        sync.RWMutex
	clock     timeutil.Clock
	unit      timeutil.Unit
	snapshots map[string]store.Snapshot
	deltas    map[string][]store.DeltaRecord // ascending by version
}

// New creates an empty in-memory store stamping records with the given clock.
func New(clock timeutil.Clock, unit timeutil.Unit) *Memory {
	return &Memory{
		clock:     clock,
		unit:      unit,
		snapshots: make(map[string]store.Snapshot),
		deltas:    make(map[string][]store.DeltaRecord),
	}
}

func (m *Memory) GetSnapshot(_ context.Context, contextID string) (*store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[contextID]
	if !ok {
		return nil, errors.NewNotFound(contextID)
	}
	return &snap, nil
}

func (m *Memory) PutSnapshot(_ context.Context, contextID string, state map[string]any, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[contextID] = store.Snapshot{
		ContextID:  contextID,
		State:      state,
		Version:    version,
		InsertedAt: m.clock.Now(m.unit),
	}
	return nil
}

func (m *Memory) DeleteSnapshot(_ context.Context, contextID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.snapshots, contextID)
	return nil
}

func (m *Memory) AppendDelta(_ context.Context, contextID string, d delta.Delta, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := store.DeltaRecord{
		ContextID:  contextID,
		Delta:      d,
		Version:    version,
		InsertedAt: m.clock.Now(m.unit),
	}

	history := m.deltas[contextID]
	// Appends arrive in version order; keep the slice sorted regardless.
	if n := len(history); n > 0 && history[n-1].Version > version {
		idx := sort.Search(n, func(i int) bool { return history[i].Version >= version })
		history = append(history, store.DeltaRecord{})
		copy(history[idx+1:], history[idx:])
		history[idx] = rec
	} else {
		history = append(history, rec)
	}
	m.deltas[contextID] = history
	return nil
}

func (m *Memory) DeltasAfter(_ context.Context, contextID string, afterVersion int64) ([]store.DeltaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.deltas[contextID]
	idx := sort.Search(len(history), func(i int) bool { return history[i].Version > afterVersion })
	out := make([]store.DeltaRecord, len(history)-idx)
	copy(out, history[idx:])
	return out, nil
}

func (m *Memory) DeleteDeltas(_ context.Context, contextID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.deltas, contextID)
	return nil
}

func (m *Memory) DeleteDeltasBefore(_ context.Context, contextID string, cutoff int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.deltas[contextID]
	kept := history[:0:0]
	for _, rec := range history {
		if rec.InsertedAt >= cutoff {
			kept = append(kept, rec)
		}
	}
	removed := len(history) - len(kept)
	if len(kept) == 0 {
		delete(m.deltas, contextID)
	} else {
		m.deltas[contextID] = kept
	}
	return removed, nil
}

func (m *Memory) TrimDeltas(_ context.Context, contextID string, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	history := m.deltas[contextID]
	if len(history) <= keep {
		return 0, nil
	}
	removed := len(history) - keep
	if keep == 0 {
		delete(m.deltas, contextID)
	} else {
		kept := make([]store.DeltaRecord, keep)
		copy(kept, history[removed:])
		m.deltas[contextID] = kept
	}
	return removed, nil
}

func (m *Memory) ListSnapshots(_ context.Context, opts store.ListOptions) ([]store.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.Snapshot
	for _, snap := range m.snapshots {
		if store.MatchSnapshot(snap, opts) {
			out = append(out, snap)
		}
	}
	store.SortSnapshots(out, opts.Order)
	return store.Page(out, opts), nil
}

func (m *Memory) ListDeltas(_ context.Context, opts store.ListOptions) ([]store.DeltaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.DeltaRecord
	for _, history := range m.deltas {
		for _, rec := range history {
			if store.MatchDelta(rec, opts) {
				out = append(out, rec)
			}
		}
	}
	store.SortDeltas(out, opts.Order)
	return store.Page(out, opts), nil
}

func (m *Memory) DeltaCounts(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int, len(m.deltas))
	for contextID, history := range m.deltas {
		counts[contextID] = len(history)
	}
	return counts, nil
}

func (m *Memory) Close() error { return nil }
