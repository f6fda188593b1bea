package ops

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/config"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	ContextID string
}

// ExportOutput contains the snapshot that was handed to the callback.
type ExportOutput struct {
	Context store.Snapshot `json:"context"`
}

// Export fetches the current snapshot and passes it to the configured export
// callback. A missing context and a missing callback are distinct errors.
func Export(ctx context.Context, st store.Store, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	if err := ValidateContextID(input.ContextID); err != nil {
		return nil, err
	}
	if cfg.ExportCallback == nil {
		return nil, errors.NewNoExportCallback()
	}

	snap, err := st.GetSnapshot(ctx, input.ContextID)
	if err != nil {
		return nil, err
	}

	if err := cfg.ExportCallback(*snap); err != nil {
		return nil, err
	}

	return &ExportOutput{Context: *snap}, nil
}
