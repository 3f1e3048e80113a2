package kb

import (
	"context"
	"database/sql"
	"errors"
)

// Export returns a full snapshot of both relations: entries ordered by
// creation time ascending, usage events by usage time ascending.
func (s *Store) Export(ctx context.Context) (Snapshot, error) {
	if s == nil || s.db == nil {
		return Snapshot{}, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	snap := Snapshot{ExportedAtUnixMs: s.now().UnixMilli()}

	rows, err := s.db.QueryContext(ctx, `
SELECT`+entryColumns+`
FROM kb_entries
ORDER BY created_at_unix_ms ASC, id ASC
`)
	if err != nil {
		return Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Knowledge = append(snap.Knowledge, e)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, err
	}

	usageRows, err := s.db.QueryContext(ctx, `
SELECT id, entry_id, used_at_unix_ms, context, helpful, notes
FROM kb_usage
ORDER BY used_at_unix_ms ASC, id ASC
`)
	if err != nil {
		return Snapshot{}, err
	}
	defer usageRows.Close()
	for usageRows.Next() {
		var ev UsageEvent
		var helpful sql.NullBool
		if err := usageRows.Scan(&ev.ID, &ev.EntryID, &ev.UsedAtUnixMs, &ev.Context, &helpful, &ev.Notes); err != nil {
			return Snapshot{}, err
		}
		if helpful.Valid {
			v := helpful.Bool
			ev.Helpful = &v
		}
		snap.Usage = append(snap.Usage, ev)
	}
	if err := usageRows.Err(); err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

// RebuildIndex drops and repopulates the full-text projection from the
// entries table. The entries table always wins over the index, so this is
// the recovery path when the two are suspected to disagree.
func (s *Store) RebuildIndex(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_entries_fts`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO kb_entries_fts(rowid, title, problem, solution, tags, code_examples)
SELECT id, title, problem, solution, tags, code_examples FROM kb_entries
`); err != nil {
		return err
	}
	return tx.Commit()
}
