package store

import "sort"

// MatchSnapshot reports whether a snapshot passes the list filter
// (pagination excluded).
func MatchSnapshot(snap Snapshot, opts ListOptions) bool {
	if opts.ContextID != "" && snap.ContextID != opts.ContextID {
		return false
	}
	if opts.OlderThan != nil && snap.InsertedAt >= *opts.OlderThan {
		return false
	}
	if opts.MinVersion != nil && snap.Version <= *opts.MinVersion {
		return false
	}
	return true
}

// MatchDelta reports whether a delta record passes the list filter
// (pagination excluded).
func MatchDelta(rec DeltaRecord, opts ListOptions) bool {
	if opts.ContextID != "" && rec.ContextID != opts.ContextID {
		return false
	}
	if opts.OlderThan != nil && rec.InsertedAt >= *opts.OlderThan {
		return false
	}
	if opts.MinVersion != nil && rec.Version <= *opts.MinVersion {
		return false
	}
	return true
}

// SortSnapshots orders snapshots by inserted_at in the given direction,
// context id as tiebreaker.
func SortSnapshots(snaps []Snapshot, order Order) {
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].InsertedAt != snaps[j].InsertedAt {
			return lessInt64(snaps[i].InsertedAt, snaps[j].InsertedAt, order)
		}
		return snaps[i].ContextID < snaps[j].ContextID
	})
}

// SortDeltas orders delta records by inserted_at in the given direction,
// context id then version as tiebreakers.
func SortDeltas(recs []DeltaRecord, order Order) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].InsertedAt != recs[j].InsertedAt {
			return lessInt64(recs[i].InsertedAt, recs[j].InsertedAt, order)
		}
		if recs[i].ContextID != recs[j].ContextID {
			return recs[i].ContextID < recs[j].ContextID
		}
		return lessInt64(recs[i].Version, recs[j].Version, order)
	})
}

// Page applies offset and limit to an already-sorted slice.
func Page[T any](items []T, opts ListOptions) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func lessInt64(a, b int64, order Order) bool {
	if order == OrderDesc {
		return a > b
	}
	return a < b
}
