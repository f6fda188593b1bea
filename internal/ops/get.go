package ops

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/store"
)

// GetInput contains parameters for the Get operation.
type GetInput struct {
	ContextID string
}

// GetOutput contains the result of the Get operation.
type GetOutput struct {
	Context store.Snapshot `json:"context"`
}

// Get retrieves the current snapshot of a context.
func Get(ctx context.Context, st store.Store, input GetInput) (*GetOutput, error) {
	if err := ValidateContextID(input.ContextID); err != nil {
		return nil, err
	}

	snap, err := st.GetSnapshot(ctx, input.ContextID)
	if err != nil {
		return nil, err
	}

	return &GetOutput{Context: *snap}, nil
}
