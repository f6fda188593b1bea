package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/stefanzvkvc/chord/internal/delta"
	"github.com/stefanzvkvc/chord/internal/errors"
	"github.com/stefanzvkvc/chord/internal/store"
)

func (s *SQLite) GetSnapshot(ctx context.Context, contextID string) (*store.Snapshot, error) {
	query := `
		SELECT context_id, state_json, version, inserted_at
		FROM snapshots
		WHERE context_id = ?
	`
	row := s.db.QueryRowContext(ctx, query, contextID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(contextID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return snap, nil
}

func (s *SQLite) PutSnapshot(ctx context.Context, contextID string, state map[string]any, version int64) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO snapshots (context_id, state_json, version, inserted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (context_id) DO UPDATE SET
			state_json = excluded.state_json,
			version = excluded.version,
			inserted_at = excluded.inserted_at
	`
	_, err = s.db.ExecContext(ctx, query, contextID, string(stateJSON), version, s.clock.Now(s.unit))
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *SQLite) DeleteSnapshot(ctx context.Context, contextID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE context_id = ?`, contextID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *SQLite) AppendDelta(ctx context.Context, contextID string, d delta.Delta, version int64) error {
	deltaJSON, err := json.Marshal(d)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO deltas (context_id, version, delta_json, inserted_at)
		VALUES (?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query, contextID, version, string(deltaJSON), s.clock.Now(s.unit))
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *SQLite) DeltasAfter(ctx context.Context, contextID string, afterVersion int64) ([]store.DeltaRecord, error) {
	query := `
		SELECT context_id, version, delta_json, inserted_at
		FROM deltas
		WHERE context_id = ? AND version > ?
		ORDER BY version ASC
	`
	rows, err := s.db.QueryContext(ctx, query, contextID, afterVersion)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	return collectDeltas(rows)
}

func (s *SQLite) DeleteDeltas(ctx context.Context, contextID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM deltas WHERE context_id = ?`, contextID)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *SQLite) DeleteDeltasBefore(ctx context.Context, contextID string, cutoff int64) (int, error) {
	query := `DELETE FROM deltas WHERE context_id = ? AND inserted_at < ?`
	result, err := s.db.ExecContext(ctx, query, contextID, cutoff)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return rowsAffected(result), nil
}

func (s *SQLite) TrimDeltas(ctx context.Context, contextID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
		DELETE FROM deltas
		WHERE context_id = ? AND version NOT IN (
			SELECT version FROM deltas
			WHERE context_id = ?
			ORDER BY version DESC
			LIMIT ?
		)
	`
	result, err := s.db.ExecContext(ctx, query, contextID, contextID, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return rowsAffected(result), nil
}

func (s *SQLite) ListSnapshots(ctx context.Context, opts store.ListOptions) ([]store.Snapshot, error) {
	query := `SELECT context_id, state_json, version, inserted_at FROM snapshots`
	where, args := buildFilter(opts)
	query += where + orderClause(opts.Order, "context_id") + limitClause(opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []store.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func (s *SQLite) ListDeltas(ctx context.Context, opts store.ListOptions) ([]store.DeltaRecord, error) {
	query := `SELECT context_id, version, delta_json, inserted_at FROM deltas`
	where, args := buildFilter(opts)
	query += where + deltaOrderClause(opts.Order) + limitClause(opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	return collectDeltas(rows)
}

func (s *SQLite) DeltaCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT context_id, COUNT(*) FROM deltas GROUP BY context_id`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var contextID string
		var count int
		if err := rows.Scan(&contextID, &count); err != nil {
			return nil, errors.NewInternal(err)
		}
		counts[contextID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return counts, nil
}

func rowsAffected(result sql.Result) int {
	n, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

// scanner abstracts sql.Row and sql.Rows for scanSnapshot.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*store.Snapshot, error) {
	var snap store.Snapshot
	var stateJSON string
	if err := row.Scan(&snap.ContextID, &stateJSON, &snap.Version, &snap.InsertedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stateJSON), &snap.State); err != nil {
		return nil, err
	}
	return &snap, nil
}

func collectDeltas(rows *sql.Rows) ([]store.DeltaRecord, error) {
	out := []store.DeltaRecord{}
	for rows.Next() {
		var rec store.DeltaRecord
		var deltaJSON string
		if err := rows.Scan(&rec.ContextID, &rec.Version, &deltaJSON, &rec.InsertedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := json.Unmarshal([]byte(deltaJSON), &rec.Delta); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

func buildFilter(opts store.ListOptions) (string, []any) {
	where := ""
	var args []any
	and := func(clause string, arg any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, arg)
	}

	if opts.ContextID != "" {
		and("context_id = ?", opts.ContextID)
	}
	if opts.OlderThan != nil {
		and("inserted_at < ?", *opts.OlderThan)
	}
	if opts.MinVersion != nil {
		and("version > ?", *opts.MinVersion)
	}
	return where, args
}

func orderClause(order store.Order, tiebreak string) string {
	return " ORDER BY inserted_at " + orderDir(order) + ", " + tiebreak
}

// deltaOrderClause matches the memory backend: the direction applies to the
// version tiebreaker too, context id stays ascending.
func deltaOrderClause(order store.Order) string {
	dir := orderDir(order)
	return " ORDER BY inserted_at " + dir + ", context_id, version " + dir
}

func orderDir(order store.Order) string {
	if order == store.OrderDesc {
		return "DESC"
	}
	return "ASC"
}

func limitClause(opts store.ListOptions) string {
	if opts.Limit <= 0 && opts.Offset <= 0 {
		return ""
	}
	limit := int64(-1) // SQLite: negative limit means unbounded
	if opts.Limit > 0 {
		limit = int64(opts.Limit)
	}
	clause := " LIMIT " + strconv.FormatInt(limit, 10)
	if opts.Offset > 0 {
		clause += " OFFSET " + strconv.Itoa(opts.Offset)
	}
	return clause
}
