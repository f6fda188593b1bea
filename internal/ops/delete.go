package ops

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/store"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ContextID string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	ContextID string `json:"context_id"`
}

// Delete removes a context's snapshot and its entire delta history.
// Deleting a context that does not exist is a no-op.
func Delete(ctx context.Context, st store.Store, input DeleteInput) (*DeleteOutput, error) {
	if err := ValidateContextID(input.ContextID); err != nil {
		return nil, err
	}

	if err := st.DeleteSnapshot(ctx, input.ContextID); err != nil {
		return nil, err
	}
	if err := st.DeleteDeltas(ctx, input.ContextID); err != nil {
		return nil, err
	}

	return &DeleteOutput{ContextID: input.ContextID}, nil
}
