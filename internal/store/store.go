// Package store defines the versioned storage contract the synchronization
// engine is built against, plus the record and filter types shared by all
// backends.
//
// Any backend must guarantee, per context: reads of a snapshot observe the
// most recent completed write, version numbers are never reused, and delta
// range queries are ordered by version with no gaps other than those created
// by trimming. Deletes are idempotent.
package store

import (
	"context"

	"github.com/stefanzvkvc/chord/internal/delta"
)

// Snapshot is the current materialized state of a context.
type Snapshot struct {
	ContextID  string         `json:"context_id"`
	State      map[string]any `json:"state"`
	Version    int64          `json:"version"`
	InsertedAt int64          `json:"inserted_at"`
}

// DeltaRecord is one stored delta, keyed by (context_id, version).
type DeltaRecord struct {
	ContextID  string      `json:"context_id"`
	Delta      delta.Delta `json:"delta"`
	Version    int64       `json:"version"`
	InsertedAt int64       `json:"inserted_at"`
}

// Order selects list direction by insertion time.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ListOptions filters paginated enumeration. Zero values mean "no filter";
// a nil OlderThan or MinVersion disables that predicate.
type ListOptions struct {
	ContextID  string
	OlderThan  *int64 // inserted_at strictly before this instant
	MinVersion *int64 // version strictly greater than this
	Limit      int    // 0 means no limit
	Offset     int
	Order      Order // default asc by inserted_at, version as tiebreaker
}

// Store is the versioned store contract. Implementations must be safe for
// concurrent use; callers serialize read-modify-write cycles per context.
type Store interface {
	// GetSnapshot returns the current snapshot, or a NOT_FOUND error.
	GetSnapshot(ctx context.Context, contextID string) (*Snapshot, error)

	// PutSnapshot writes the snapshot at the given version, replacing any
	// previous snapshot for the context (last write wins).
	PutSnapshot(ctx context.Context, contextID string, state map[string]any, version int64) error

	// DeleteSnapshot removes the snapshot only. Deleting a missing snapshot
	// is a no-op.
	DeleteSnapshot(ctx context.Context, contextID string) error

	// AppendDelta appends one delta under the given version.
	AppendDelta(ctx context.Context, contextID string, d delta.Delta, version int64) error

	// DeltasAfter returns all deltas with version > afterVersion, ascending.
	// An empty slice (not an error) means no history in that range.
	DeltasAfter(ctx context.Context, contextID string, afterVersion int64) ([]DeltaRecord, error)

	// DeleteDeltas removes the full delta history for a context.
	DeleteDeltas(ctx context.Context, contextID string) error

	// DeleteDeltasBefore removes delta entries with inserted_at < cutoff.
	// It returns the number of entries removed.
	DeleteDeltasBefore(ctx context.Context, contextID string, cutoff int64) (int, error)

	// TrimDeltas removes all but the keep most-recent (by version) delta
	// entries. It returns the number of entries removed.
	TrimDeltas(ctx context.Context, contextID string, keep int) (int, error)

	// ListSnapshots enumerates snapshots matching the filter.
	ListSnapshots(ctx context.Context, opts ListOptions) ([]Snapshot, error)

	// ListDeltas enumerates delta records matching the filter.
	ListDeltas(ctx context.Context, opts ListOptions) ([]DeltaRecord, error)

	// DeltaCounts returns the delta-history length per context.
	DeltaCounts(ctx context.Context) (map[string]int, error)

	// Close releases backend resources.
	Close() error
}

// RestoredContext is the payload an external restore provider returns.
type RestoredContext struct {
	State   map[string]any `json:"state"`
	Version int64          `json:"version"`
}

// ExportCallback receives the current snapshot of a context on export.
type ExportCallback func(snap Snapshot) error

// RestoreProvider supplies a context's state and version from cold storage.
type RestoreProvider func(ctx context.Context, contextID string) (*RestoredContext, error)
