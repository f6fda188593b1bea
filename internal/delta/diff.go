package delta

import "reflect"

// Diff computes the structured difference between two states. The result is
// empty if and only if the states are deep-equal, which callers use to detect
// no-op writes. Output does not depend on map iteration order.
func Diff(oldState, newState map[string]any) Delta {
	d := Delta{}

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			d[key] = addedTree(newVal)
			continue
		}

		oldMap, oldIsMap := asMap(oldVal)
		newMap, newIsMap := asMap(newVal)
		switch {
		case oldIsMap && newIsMap:
			if sub := Diff(oldMap, newMap); len(sub) > 0 {
				d[key] = sub
			}
		case !reflect.DeepEqual(oldVal, newVal):
			// Covers scalars, sequences, and map-to-non-map type changes.
			d[key] = Change{Action: ActionModified, Value: newVal, OldValue: oldVal}
		}
	}

	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			d[key] = Change{Action: ActionRemoved, OldValue: oldVal}
		}
	}

	return d
}

// addedTree expands a newly added value into change records. Nested mappings
// become trees of added leaves so every leaf has uniform shape.
func addedTree(v any) any {
	if m, ok := asMap(v); ok {
		sub := make(Delta, len(m))
		for k, mv := range m {
			sub[k] = addedTree(mv)
		}
		return sub
	}
	return Change{Action: ActionAdded, Value: v}
}

// Apply replays a delta on top of a state: added and modified records insert
// or replace the field, removed records delete it, nested deltas recurse.
// The input state is not mutated.
func Apply(state map[string]any, d Delta) map[string]any {
	out := cloneMap(state)
	for key, node := range d {
		switch rec := node.(type) {
		case Change:
			if rec.Action == ActionRemoved {
				delete(out, key)
			} else {
				out[key] = rec.Value
			}
		case Delta:
			sub, _ := asMap(out[key])
			out[key] = Apply(sub, rec)
		}
	}
	return out
}
