package ops

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/config"
	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/store"
)

// SyncStatus tells a client what it received.
type SyncStatus string

const (
	SyncFull     SyncStatus = "full"
	SyncDelta    SyncStatus = "delta"
	SyncNoChange SyncStatus = "no_change"
)

// SyncInput contains parameters for the Sync operation. A nil ClientVersion
// means the client has no state at all.
type SyncInput struct {
	ContextID     string
	ClientVersion *int64
}

// SyncOutput contains the sync decision: the full state, a coalesced delta,
// or no change, always echoing the current version.
type SyncOutput struct {
	Status     SyncStatus     `json:"status"`
	State      map[string]any `json:"state,omitempty"`
	Delta      delta.Delta    `json:"delta,omitempty"`
	Version    int64          `json:"version"`
	InsertedAt int64          `json:"inserted_at,omitempty"`
}

// Sync decides what a client with a stated version should receive, given the
// current version V and the retention window T (cfg.DeltaThreshold):
//
//	client version nil        -> full snapshot
//	client version < V-T      -> full snapshot (too stale for catch-up)
//	client version >= V       -> no change
//	otherwise                 -> deltas after the client version, coalesced;
//	                             a window with missing versions degrades
//	                             to full.
func Sync(ctx context.Context, st store.Store, cfg *config.Config, input SyncInput) (*SyncOutput, error) {
	if err := ValidateContextID(input.ContextID); err != nil {
		return nil, err
	}

	snap, err := st.GetSnapshot(ctx, input.ContextID)
	if err != nil {
		return nil, err
	}

	if input.ClientVersion == nil {
		return fullSync(snap), nil
	}

	clientVersion := *input.ClientVersion
	threshold := int64(cfg.DeltaThreshold)

	switch {
	case clientVersion < snap.Version-threshold:
		return fullSync(snap), nil

	case clientVersion >= snap.Version:
		return &SyncOutput{Status: SyncNoChange, Version: snap.Version}, nil
	}

	records, err := st.DeltasAfter(ctx, input.ContextID, clientVersion)
	if err != nil {
		return nil, err
	}
	// The window is only usable if it covers every version from
	// clientVersion+1 through the snapshot version. Time-based delta
	// eviction can remove the leading records of the range without the
	// version distance giving it away, and a concurrent write can leave a
	// trailing record ahead of the snapshot read above. Any such gap or
	// overhang degrades to a full snapshot rather than serving a partial
	// delta under the current version.
	if !coversRange(records, clientVersion+1, snap.Version) {
		return fullSync(snap), nil
	}

	deltas := make([]delta.Delta, len(records))
	for i, rec := range records {
		deltas[i] = rec.Delta
	}

	return &SyncOutput{
		Status:     SyncDelta,
		Delta:      delta.Merge(deltas),
		Version:    snap.Version,
		InsertedAt: snap.InsertedAt,
	}, nil
}

// coversRange reports whether records form the contiguous version run
// first..last. Records arrive sorted ascending by version.
func coversRange(records []store.DeltaRecord, first, last int64) bool {
	if int64(len(records)) != last-first+1 {
		return false
	}
	return records[0].Version == first && records[len(records)-1].Version == last
}

func fullSync(snap *store.Snapshot) *SyncOutput {
	return &SyncOutput{
		Status:     SyncFull,
		State:      snap.State,
		Version:    snap.Version,
		InsertedAt: snap.InsertedAt,
	}
}
