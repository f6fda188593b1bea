package delta

import (
	"sort"
	"strings"
)

// Metadata describes the delta being formatted.
type Metadata struct {
	ContextID  string
	Version    int64
	InsertedAt int64
}

// FlatChange is one leaf of a flattened delta: the key path from root to the
// changed field plus the change record and the delta's metadata.
type FlatChange struct {
	KeyPath    []string `json:"key_path"`
	Action     Action   `json:"action"`
	Value      any      `json:"value,omitempty"`
	OldValue   any      `json:"old_value,omitempty"`
	ContextID  string   `json:"context_id,omitempty"`
	Version    int64    `json:"version,omitempty"`
	InsertedAt int64    `json:"inserted_at,omitempty"`
}

// Formatter is a pluggable flattening strategy for deltas.
type Formatter interface {
	Format(d Delta, meta Metadata) []FlatChange
}

// TableFormatter is the default Formatter: depth-first flattening with the
// output sorted by joined key path, so equal deltas format identically.
type TableFormatter struct{}

func (TableFormatter) Format(d Delta, meta Metadata) []FlatChange {
	var out []FlatChange
	flatten(d, nil, meta, &out)
	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i].KeyPath, ".") < strings.Join(out[j].KeyPath, ".")
	})
	return out
}

func flatten(d Delta, path []string, meta Metadata, out *[]FlatChange) {
	for key, node := range d {
		keyPath := append(append([]string{}, path...), key)
		switch rec := node.(type) {
		case Change:
			*out = append(*out, FlatChange{
				KeyPath:    keyPath,
				Action:     rec.Action,
				Value:      rec.Value,
				OldValue:   rec.OldValue,
				ContextID:  meta.ContextID,
				Version:    meta.Version,
				InsertedAt: meta.InsertedAt,
			})
		case Delta:
			flatten(rec, keyPath, meta, out)
		}
	}
}
