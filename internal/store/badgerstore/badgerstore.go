// Package badgerstore implements the versioned store contract over BadgerDB,
// an embedded ordered key-value store. Snapshots live under "s\x00<id>" and
// deltas under "d\x00<id>\x00<version>" with the version encoded big-endian,
// so a prefix iteration yields the delta history in version order.
//
// Context ids must not contain NUL bytes; the ops layer rejects them before
// they reach a backend.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store"
	"github.com/stefanzvkvc/chord/internal/timeutil"
)

const (
	snapPrefix  = "s\x00"
	deltaPrefix = "d\x00"
)

// Config holds configuration for the Badger backend.
type Config struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// BadgerStore is a BadgerDB-backed versioned store.
type BadgerStore struct {
	db    *badger.DB
	clock timeutil.Clock
	unit  timeutil.Unit
}

// Open opens (creating if needed) a Badger database per the configuration.
func Open(cfg Config, clock timeutil.Clock, unit timeutil.Unit) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.NewInvalidRequest("path is required for persistent badger database")
		}
		if err := os.MkdirAll(cfg.Path, 0700); err != nil {
			return nil, errors.NewInternal(fmt.Errorf("create database directory %s: %w", cfg.Path, err))
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("open badger database: %w", err))
	}
	return &BadgerStore{db: db, clock: clock, unit: unit}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func snapKey(contextID string) []byte {
	return []byte(snapPrefix + contextID)
}

func deltaKeyPrefix(contextID string) []byte {
	return []byte(deltaPrefix + contextID + "\x00")
}

func deltaKey(contextID string, version int64) []byte {
	prefix := deltaKeyPrefix(contextID)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(version))
	return key
}

func (b *BadgerStore) GetSnapshot(_ context.Context, contextID string) (*store.Snapshot, error) {
	var snap store.Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapKey(contextID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.NewNotFound(contextID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &snap, nil
}

func (b *BadgerStore) PutSnapshot(_ context.Context, contextID string, state map[string]any, version int64) error {
	snap := store.Snapshot{
		ContextID:  contextID,
		State:      state,
		Version:    version,
		InsertedAt: b.clock.Now(b.unit),
	}
	val, err := json.Marshal(snap)
	if err != nil {
		return errors.NewInternal(err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapKey(contextID), val)
	})
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (b *BadgerStore) DeleteSnapshot(_ context.Context, contextID string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapKey(contextID))
	})
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (b *BadgerStore) AppendDelta(_ context.Context, contextID string, d delta.Delta, version int64) error {
	rec := store.DeltaRecord{
		ContextID:  contextID,
		Delta:      d,
		Version:    version,
		InsertedAt: b.clock.Now(b.unit),
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return errors.NewInternal(err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deltaKey(contextID, version), val)
	})
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (b *BadgerStore) DeltasAfter(_ context.Context, contextID string, afterVersion int64) ([]store.DeltaRecord, error) {
	out := []store.DeltaRecord{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = deltaKeyPrefix(contextID)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Big-endian version keys make Seek land on the first entry with
		// version >= afterVersion+1.
		for it.Seek(deltaKey(contextID, afterVersion+1)); it.Valid(); it.Next() {
			var rec store.DeltaRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func (b *BadgerStore) DeleteDeltas(_ context.Context, contextID string) error {
	keys, err := b.collectDeltaKeys(contextID, func(store.DeltaRecord) bool { return true })
	if err != nil {
		return err
	}
	return b.deleteKeys(keys)
}

func (b *BadgerStore) DeleteDeltasBefore(_ context.Context, contextID string, cutoff int64) (int, error) {
	keys, err := b.collectDeltaKeys(contextID, func(rec store.DeltaRecord) bool {
		return rec.InsertedAt < cutoff
	})
	if err != nil {
		return 0, err
	}
	if err := b.deleteKeys(keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (b *BadgerStore) TrimDeltas(_ context.Context, contextID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	keys, err := b.collectDeltaKeys(contextID, func(store.DeltaRecord) bool { return true })
	if err != nil {
		return 0, err
	}
	if len(keys) <= keep {
		return 0, nil
	}
	// Keys iterate in version order; drop everything but the last keep.
	doomed := keys[:len(keys)-keep]
	if err := b.deleteKeys(doomed); err != nil {
		return 0, err
	}
	return len(doomed), nil
}

func (b *BadgerStore) ListSnapshots(_ context.Context, opts store.ListOptions) ([]store.Snapshot, error) {
	var out []store.Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = []byte(snapPrefix)
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var snap store.Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return err
			}
			if store.MatchSnapshot(snap, opts) {
				out = append(out, snap)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	store.SortSnapshots(out, opts.Order)
	return store.Page(out, opts), nil
}

func (b *BadgerStore) ListDeltas(_ context.Context, opts store.ListOptions) ([]store.DeltaRecord, error) {
	var out []store.DeltaRecord
	err := b.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = []byte(deltaPrefix)
		if opts.ContextID != "" {
			iopts.Prefix = deltaKeyPrefix(opts.ContextID)
		}
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec store.DeltaRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if store.MatchDelta(rec, opts) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	store.SortDeltas(out, opts.Order)
	return store.Page(out, opts), nil
}

func (b *BadgerStore) DeltaCounts(_ context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := b.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = []byte(deltaPrefix)
		iopts.PrefetchValues = false
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			// d\x00<id>\x00<version: 8 bytes>
			body := key[len(deltaPrefix) : len(key)-8]
			contextID := string(bytes.TrimSuffix(body, []byte{0}))
			counts[contextID]++
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return counts, nil
}

// collectDeltaKeys returns the keys (in version order) of delta entries
// matching the predicate.
func (b *BadgerStore) collectDeltaKeys(contextID string, match func(store.DeltaRecord) bool) ([][]byte, error) {
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = deltaKeyPrefix(contextID)
		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec store.DeltaRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if match(rec) {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return keys, nil
}

func (b *BadgerStore) deleteKeys(keys [][]byte) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return errors.NewInternal(err)
		}
	}
	if err := wb.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
