package ops

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/store"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	ContextID string
	Partial   map[string]any
}

// Update deep-merges a partial state into the current state and commits the
// result like Set. Missing fields are created; non-map values in the partial
// fully replace the corresponding field.
func Update(ctx context.Context, st store.Store, input UpdateInput) (*SetOutput, error) {
	if err := ValidateContextID(input.ContextID); err != nil {
		return nil, err
	}
	if input.Partial == nil {
		input.Partial = map[string]any{}
	}

	oldState, oldVersion, err := currentState(ctx, st, input.ContextID)
	if err != nil {
		return nil, err
	}

	newState := deepMerge(oldState, input.Partial)
	return commit(ctx, st, input.ContextID, oldState, oldVersion, newState)
}

// deepMerge merges partial into base recursively. Both inputs are left
// unmodified.
func deepMerge(base, partial map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range partial {
		pm, pIsMap := pv.(map[string]any)
		bm, bIsMap := out[k].(map[string]any)
		if pIsMap && bIsMap {
			out[k] = deepMerge(bm, pm)
		} else {
			out[k] = pv
		}
	}
	return out
}
