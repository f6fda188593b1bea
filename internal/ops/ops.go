// Package ops implements the synchronization protocol over a versioned
// store: set/update/get/delete, the sync decision procedure, export/restore
// hooks, and the eviction sweep. Operations are stateless call-throughs;
// callers must serialize concurrent writes to the same context id (the root
// facade does this with a per-context lock).
package ops

import (
	"strings"

	"github.com/stefanzvkvc/chord/internal/errors"
)

// Sweep batching
const (
	DefaultSweepBatch = 1000
	MaxSweepBatch     = 10000
)

// ValidateContextID checks a caller-chosen context id. Ids are opaque but
// must be non-empty and free of NUL bytes (the badger backend uses NUL as a
// key separator).
func ValidateContextID(contextID string) error {
	if strings.TrimSpace(contextID) == "" {
		return errors.NewInvalidRequest("context_id must not be empty")
	}
	if strings.ContainsRune(contextID, 0) {
		return errors.NewInvalidRequest("context_id must not contain NUL bytes")
	}
	return nil
}
