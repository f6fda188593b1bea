// Package delta computes structured differences between two context states,
// coalesces ordered sequences of differences into one, and flattens them for
// presentation. States are JSON-shaped nested maps (map[string]any); the
// package is pure and performs no I/O.
package delta

import "encoding/json"

// Action tags one field's transition.
type Action string

const (
	ActionAdded    Action = "added"
	ActionModified Action = "modified"
	ActionRemoved  Action = "removed"
)

// Change records one field's transition. Removed records always carry the
// old value; modified records carry both sides.
type Change struct {
	Action   Action `json:"action"`
	Value    any    `json:"value,omitempty"`
	OldValue any    `json:"old_value,omitempty"`
}

// Delta maps field names to either a Change leaf or a nested Delta.
// An empty Delta means the two states were deep-equal.
type Delta map[string]any

// UnmarshalJSON rebuilds Change leaves from their JSON object form so
// deltas read back from a storage backend are structurally identical to
// freshly computed ones.
func (d *Delta) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = decodeDelta(raw)
	return nil
}

// decodeDelta converts a generic JSON map into a Delta. A node is a Change
// leaf when its "action" key holds a known action string; change leaves are
// the only place a bare string can appear under that key, so the check is
// unambiguous.
func decodeDelta(raw map[string]any) Delta {
	d := make(Delta, len(raw))
	for k, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			// Not produced by Diff; keep as-is rather than drop data.
			d[k] = v
			continue
		}
		if action, ok := m["action"].(string); ok && knownAction(Action(action)) {
			d[k] = Change{
				Action:   Action(action),
				Value:    m["value"],
				OldValue: m["old_value"],
			}
			continue
		}
		d[k] = decodeDelta(m)
	}
	return d
}

func knownAction(a Action) bool {
	return a == ActionAdded || a == ActionModified || a == ActionRemoved
}

// asMap reports whether v is a nested state mapping.
func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
