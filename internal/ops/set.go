package ops

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store"
)

// SetInput contains parameters for the Set operation.
type SetInput struct {
	ContextID string
	State     map[string]any
}

// SetOutput contains the result of a state-changing write (Set or Update).
type SetOutput struct {
	Context store.Snapshot `json:"context"`
	Delta   delta.Delta    `json:"delta"`
}

// Set replaces the full state of a context. A write that changes nothing
// returns the current snapshot and an empty delta without bumping the
// version or touching history.
func Set(ctx context.Context, st store.Store, input SetInput) (*SetOutput, error) {
	if err := ValidateContextID(input.ContextID); err != nil {
		return nil, err
	}
	if input.State == nil {
		input.State = map[string]any{}
	}

	oldState, oldVersion, err := currentState(ctx, st, input.ContextID)
	if err != nil {
		return nil, err
	}

	return commit(ctx, st, input.ContextID, oldState, oldVersion, input.State)
}

// currentState loads the state and version of a context, treating a missing
// context as empty state at version 0.
func currentState(ctx context.Context, st store.Store, contextID string) (map[string]any, int64, error) {
	snap, err := st.GetSnapshot(ctx, contextID)
	if errors.Is(err, errors.ErrNotFound) {
		return map[string]any{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return snap.State, snap.Version, nil
}

// commit diffs old against new state and, when something changed, appends
// the delta and then persists the new snapshot under the next version. The
// delta goes first so a concurrent sync never sees a snapshot whose newest
// change is missing from history; at worst it sees a delta ahead of the
// snapshot, which the sync window check treats as unusable.
func commit(ctx context.Context, st store.Store, contextID string, oldState map[string]any, oldVersion int64, newState map[string]any) (*SetOutput, error) {
	d := delta.Diff(oldState, newState)
	if len(d) == 0 {
		// No-op write: echo the current snapshot without a version bump.
		return &SetOutput{
			Context: store.Snapshot{
				ContextID: contextID,
				State:     oldState,
				Version:   oldVersion,
			},
			Delta: delta.Delta{},
		}, nil
	}

	version := oldVersion + 1
	if err := st.AppendDelta(ctx, contextID, d, version); err != nil {
		return nil, err
	}
	if err := st.PutSnapshot(ctx, contextID, newState, version); err != nil {
		return nil, err
	}

	snap, err := st.GetSnapshot(ctx, contextID)
	if err != nil {
		return nil, err
	}
	return &SetOutput{Context: *snap, Delta: d}, nil
}
