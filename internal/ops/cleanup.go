package ops

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/config"
	"github.com/stefanzvkvc/chord/internal/store"
)

// CleanupInput contains parameters for one eviction sweep. All fields are
// optional: an empty ContextID sweeps every context, a zero BatchSize uses
// the default page size.
type CleanupInput struct {
	ContextID string `json:"context_id,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// CleanupOutput reports what a sweep removed.
type CleanupOutput struct {
	ContextsDeleted int `json:"contexts_deleted"`
	DeltasExpired   int `json:"deltas_expired"`
	DeltasTrimmed   int `json:"deltas_trimmed"`
}

// Cleanup runs one eviction sweep: expired contexts (snapshot plus history,
// when auto-delete and a context TTL are configured), aged delta entries
// (delta TTL), and over-long histories (delta threshold). The three passes
// are independent; deletes are idempotent, so overlapping sweeps are safe.
func Cleanup(ctx context.Context, st store.Store, cfg *config.Config, input CleanupInput) (*CleanupOutput, error) {
	batch := input.BatchSize
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	if batch > MaxSweepBatch {
		batch = MaxSweepBatch
	}

	now := cfg.Clock.Now(cfg.TimeUnit)
	out := &CleanupOutput{}

	if cfg.ContextAutoDelete && cfg.ContextTTL > 0 {
		if err := sweepExpiredContexts(ctx, st, input.ContextID, now-cfg.ContextTTL, batch, out); err != nil {
			return nil, err
		}
	}

	if cfg.DeltaTTL > 0 {
		if err := sweepAgedDeltas(ctx, st, input.ContextID, now-cfg.DeltaTTL, out); err != nil {
			return nil, err
		}
	}

	if cfg.DeltaThreshold > 0 {
		if err := sweepOversizedHistories(ctx, st, input.ContextID, cfg.DeltaThreshold, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func sweepExpiredContexts(ctx context.Context, st store.Store, contextID string, cutoff int64, batch int, out *CleanupOutput) error {
	for {
		// Always list from offset 0: each round deletes what it saw, so the
		// next page shifts down on its own.
		snaps, err := st.ListSnapshots(ctx, store.ListOptions{
			ContextID: contextID,
			OlderThan: &cutoff,
			Limit:     batch,
			Order:     store.OrderAsc,
		})
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			if err := st.DeleteSnapshot(ctx, snap.ContextID); err != nil {
				return err
			}
			if err := st.DeleteDeltas(ctx, snap.ContextID); err != nil {
				return err
			}
			out.ContextsDeleted++
		}
		if len(snaps) < batch {
			return nil
		}
	}
}

func sweepAgedDeltas(ctx context.Context, st store.Store, contextID string, cutoff int64, out *CleanupOutput) error {
	ids, err := contextsWithHistory(ctx, st, contextID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		removed, err := st.DeleteDeltasBefore(ctx, id, cutoff)
		if err != nil {
			return err
		}
		out.DeltasExpired += removed
	}
	return nil
}

func sweepOversizedHistories(ctx context.Context, st store.Store, contextID string, threshold int, out *CleanupOutput) error {
	counts, err := st.DeltaCounts(ctx)
	if err != nil {
		return err
	}
	for id, count := range counts {
		if contextID != "" && id != contextID {
			continue
		}
		if count <= threshold {
			continue
		}
		removed, err := st.TrimDeltas(ctx, id, threshold)
		if err != nil {
			return err
		}
		out.DeltasTrimmed += removed
	}
	return nil
}

func contextsWithHistory(ctx context.Context, st store.Store, contextID string) ([]string, error) {
	if contextID != "" {
		return []string{contextID}, nil
	}
	counts, err := st.DeltaCounts(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	return ids, nil
}
