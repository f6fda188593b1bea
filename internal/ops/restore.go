package ops

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/config"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store"
)

// RestoreInput contains parameters for the Restore operation.
type RestoreInput struct {
	ContextID string
}

// RestoreOutput contains the snapshot written from the provider's payload.
type RestoreOutput struct {
	Context store.Snapshot `json:"context"`
}

// Restore asks the configured provider for a context's cold-storage state
// and unconditionally overwrites the current snapshot at the returned
// version. This is a cold-start operation: no diff is computed and the delta
// history is left untouched.
func Restore(ctx context.Context, st store.Store, cfg *config.Config, input RestoreInput) (*RestoreOutput, error) {
	if err := ValidateContextID(input.ContextID); err != nil {
		return nil, err
	}
	if cfg.RestoreProvider == nil {
		return nil, errors.NewNoRestoreProvider()
	}

	restored, err := cfg.RestoreProvider(ctx, input.ContextID)
	if err != nil {
		return nil, err
	}
	if restored == nil {
		return nil, errors.NewInternal(nil)
	}

	state := restored.State
	if state == nil {
		state = map[string]any{}
	}
	if err := st.PutSnapshot(ctx, input.ContextID, state, restored.Version); err != nil {
		return nil, err
	}

	snap, err := st.GetSnapshot(ctx, input.ContextID)
	if err != nil {
		return nil, err
	}
	return &RestoreOutput{Context: *snap}, nil
}
