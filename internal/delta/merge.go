package delta

import "reflect"

// Merge coalesces an ordered sequence of deltas (oldest first) into the delta
// that would result from diffing the state before the first against the state
// after the last. Per key, the earliest old value in the chain is kept and the
// latest terminal action wins; a key that is added and later removed (or
// restored to its original value) drops out entirely.
func Merge(deltas []Delta) Delta {
	merged := Delta{}
	for _, d := range deltas {
		merged = mergeTwo(merged, d)
	}
	return merged
}

func mergeTwo(acc, next Delta) Delta {
	out := make(Delta, len(acc)+len(next))
	for k, v := range acc {
		out[k] = v
	}
	for k, nv := range next {
		av, ok := out[k]
		if !ok {
			out[k] = nv
			continue
		}
		combined, keep := combine(av, nv)
		if keep {
			out[k] = combined
		} else {
			delete(out, k)
		}
	}
	return out
}

// combine folds an earlier record for a key with a later one. The second
// return value is false when the two cancel out (no net change).
func combine(prev, next any) (any, bool) {
	prevDelta, prevNested := prev.(Delta)
	nextDelta, nextNested := next.(Delta)

	switch {
	case prevNested && nextNested:
		sub := mergeTwo(prevDelta, nextDelta)
		return sub, len(sub) > 0

	case prevNested:
		return combineNestedThenLeaf(prevDelta, next.(Change))

	case nextNested:
		return combineLeafThenNested(prev.(Change), nextDelta)

	default:
		return combineLeaves(prev.(Change), next.(Change))
	}
}

// combineNestedThenLeaf handles a subtree of changes followed by a record
// that collapses the whole subtree (removal, or a map-to-non-map type
// change). The leaf's old value reflects the state just before it applied;
// rewinding the earlier subtree restores the old value at the start of the
// chain.
func combineNestedThenLeaf(prevD Delta, next Change) (any, bool) {
	subtreeAdded := allAdded(prevD)

	switch next.Action {
	case ActionRemoved:
		if subtreeAdded {
			return nil, false
		}
		oldMap, _ := asMap(next.OldValue)
		return Change{Action: ActionRemoved, OldValue: rewind(prevD, oldMap)}, true

	case ActionModified:
		if subtreeAdded {
			return Change{Action: ActionAdded, Value: next.Value}, true
		}
		oldMap, _ := asMap(next.OldValue)
		first := rewind(prevD, oldMap)
		if reflect.DeepEqual(first, next.Value) {
			return nil, false
		}
		return Change{Action: ActionModified, Value: next.Value, OldValue: first}, true

	default:
		return next, true
	}
}

// combineLeafThenNested handles a leaf record followed by a subtree of
// changes: either a removed key re-added as a mapping, or a non-map value
// that became a mapping and then mutated field-wise.
func combineLeafThenNested(prev Change, nextD Delta) (any, bool) {
	switch prev.Action {
	case ActionRemoved:
		value := Apply(map[string]any{}, nextD)
		if oldMap, ok := asMap(prev.OldValue); ok {
			// A mapping removed and re-added nets out to the mapping
			// mutating in place, so the result stays a nested subtree.
			sub := Diff(oldMap, value)
			return sub, len(sub) > 0
		}
		if reflect.DeepEqual(prev.OldValue, value) {
			return nil, false
		}
		return Change{Action: ActionModified, Value: value, OldValue: prev.OldValue}, true

	case ActionAdded:
		base, _ := asMap(prev.Value)
		return Change{Action: ActionAdded, Value: Apply(base, nextD)}, true

	default:
		base, _ := asMap(prev.Value)
		value := Apply(base, nextD)
		if reflect.DeepEqual(prev.OldValue, value) {
			return nil, false
		}
		return Change{Action: ActionModified, Value: value, OldValue: prev.OldValue}, true
	}
}

func combineLeaves(prev, next Change) (any, bool) {
	switch next.Action {
	case ActionRemoved:
		switch prev.Action {
		case ActionAdded:
			return nil, false
		case ActionRemoved:
			return prev, true
		default:
			return Change{Action: ActionRemoved, OldValue: prev.OldValue}, true
		}

	default:
		// added or modified: the key ends up present with next's value.
		if prev.Action == ActionAdded {
			return Change{Action: ActionAdded, Value: next.Value}, true
		}
		if reflect.DeepEqual(prev.OldValue, next.Value) {
			return nil, false
		}
		return Change{Action: ActionModified, Value: next.Value, OldValue: prev.OldValue}, true
	}
}

// allAdded reports whether every leaf of a subtree is an added record,
// meaning the whole subtree did not exist at the start of the chain.
func allAdded(d Delta) bool {
	for _, node := range d {
		switch rec := node.(type) {
		case Change:
			if rec.Action != ActionAdded {
				return false
			}
		case Delta:
			if !allAdded(rec) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// rewind undoes a delta on top of a state, recovering the value the state
// had before the delta applied.
func rewind(d Delta, cur map[string]any) map[string]any {
	out := cloneMap(cur)
	for key, node := range d {
		switch rec := node.(type) {
		case Change:
			if rec.Action == ActionAdded {
				delete(out, key)
			} else {
				out[key] = rec.OldValue
			}
		case Delta:
			sub, _ := asMap(out[key])
			out[key] = rewind(rec, sub)
		}
	}
	return out
}
