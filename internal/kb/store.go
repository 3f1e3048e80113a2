package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the referenced entry does not exist. RecordUsage
// returns it instead of silently updating zero rows.
var ErrNotFound = errors.New("entry not found")

// Store is the SQLite-backed knowledge store. It owns the entries table,
// the append-only usage log and the derived full-text index, and exposes
// only operations that keep all three consistent: every mutation pairs the
// row write with the index write inside one transaction.
//
// Notes:
// - The index (kb_entries_fts) is never the system of record; RebuildIndex
//   repopulates it from the entries table after a partial failure.
// - WAL is enabled so readers do not block the writer beyond the critical
//   section of a single transaction.
type Store struct {
	db *sql.DB

	// now is overridable in tests.
	now func() time.Time
}

func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("missing db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const entryColumns = `
  id, public_id, title, problem, solution, categories,
  product, api_version, code_examples, tags, notes, source,
  created_at_unix_ms, updated_at_unix_ms, usage_count, effectiveness_score`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var categoriesJSON string
	var tagsRaw string
	if err := row.Scan(
		&e.ID,
		&e.PublicID,
		&e.Title,
		&e.Problem,
		&e.Solution,
		&categoriesJSON,
		&e.Product,
		&e.APIVersion,
		&e.CodeExamples,
		&tagsRaw,
		&e.Notes,
		&e.Source,
		&e.CreatedAtUnixMs,
		&e.UpdatedAtUnixMs,
		&e.UsageCount,
		&e.EffectivenessScore,
	); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(categoriesJSON), &e.Categories); err != nil {
		return Entry{}, fmt.Errorf("decode categories for entry %d: %w", e.ID, err)
	}
	e.Tags = splitTags(tagsRaw)
	return e, nil
}

func encodeCategories(categories []string) (string, error) {
	b, err := json.Marshal(categories)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	return string(b), nil
}

// Create validates and persists a new entry and its text-index projection
// in one transaction, and returns the generated public id.
func (s *Store) Create(ctx context.Context, d Draft) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateDraft(d); err != nil {
		return "", err
	}

	d.Title = strings.TrimSpace(d.Title)
	d.Problem = strings.TrimSpace(d.Problem)
	d.Solution = strings.TrimSpace(d.Solution)
	d.Product = strings.TrimSpace(d.Product)
	d.APIVersion = strings.TrimSpace(d.APIVersion)
	d.Notes = strings.TrimSpace(d.Notes)
	source := strings.TrimSpace(d.Source)
	if source == "" {
		source = "manual"
	}

	categories := normalizeCategories(d.Categories)
	categoriesJSON, err := encodeCategories(categories)
	if err != nil {
		return "", err
	}
	tagsRaw := joinTags(d.Tags)

	publicID := uuid.NewString()
	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
INSERT INTO kb_entries(
  public_id, title, problem, solution, categories,
  product, api_version, code_examples, tags, notes, source,
  created_at_unix_ms, updated_at_unix_ms, usage_count, effectiveness_score
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
`,
		publicID,
		d.Title,
		d.Problem,
		d.Solution,
		categoriesJSON,
		d.Product,
		d.APIVersion,
		d.CodeExamples,
		tagsRaw,
		d.Notes,
		source,
		now,
		now,
	)
	if err != nil {
		return "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO kb_entries_fts(rowid, title, problem, solution, tags, code_examples)
VALUES(?, ?, ?, ?, ?, ?)
`, id, d.Title, d.Problem, d.Solution, tagsRaw, d.CodeExamples); err != nil {
		return "", fmt.Errorf("index entry %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return publicID, nil
}

// Update overwrites all mutable fields of an entry and its index projection
// in one transaction. It returns false when the id is unknown.
func (s *Store) Update(ctx context.Context, id int64, d Draft) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateDraft(d); err != nil {
		return false, err
	}

	d.Title = strings.TrimSpace(d.Title)
	d.Problem = strings.TrimSpace(d.Problem)
	d.Solution = strings.TrimSpace(d.Solution)
	d.Product = strings.TrimSpace(d.Product)
	d.APIVersion = strings.TrimSpace(d.APIVersion)
	d.Notes = strings.TrimSpace(d.Notes)

	categoriesJSON, err := encodeCategories(normalizeCategories(d.Categories))
	if err != nil {
		return false, err
	}
	tagsRaw := joinTags(d.Tags)
	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE kb_entries SET
  title = ?, problem = ?, solution = ?, categories = ?,
  product = ?, api_version = ?, code_examples = ?,
  tags = ?, notes = ?, updated_at_unix_ms = ?
WHERE id = ?
`,
		d.Title,
		d.Problem,
		d.Solution,
		categoriesJSON,
		d.Product,
		d.APIVersion,
		d.CodeExamples,
		tagsRaw,
		d.Notes,
		now,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE kb_entries_fts SET
  title = ?, problem = ?, solution = ?, tags = ?, code_examples = ?
WHERE rowid = ?
`, d.Title, d.Problem, d.Solution, tagsRaw, d.CodeExamples, id); err != nil {
		return false, fmt.Errorf("reindex entry %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns an entry by internal id (id > 0) or public id. Exactly one
// identifier should be supplied; supplying neither, or an unknown one,
// returns (nil, nil) so callers can probe for existence.
func (s *Store) Get(ctx context.Context, id int64, publicID string) (*Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	publicID = strings.TrimSpace(publicID)

	var row *sql.Row
	switch {
	case publicID != "":
		row = s.db.QueryRowContext(ctx, `SELECT`+entryColumns+` FROM kb_entries WHERE public_id = ?`, publicID)
	case id > 0:
		row = s.db.QueryRowContext(ctx, `SELECT`+entryColumns+` FROM kb_entries WHERE id = ?`, id)
	default:
		return nil, nil
	}

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// RecordUsage appends a usage event and bumps the parent's usage counter in
// one transaction. It returns ErrNotFound when the entry does not exist.
func (s *Store) RecordUsage(ctx context.Context, id int64, usageContext string, helpful *bool, notes string) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	usageContext = strings.TrimSpace(usageContext)
	if usageContext == "" {
		usageContext = "manual"
	}
	notes = strings.TrimSpace(notes)

	var helpfulVal sql.NullBool
	if helpful != nil {
		helpfulVal = sql.NullBool{Bool: *helpful, Valid: true}
	}

	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE kb_entries
SET usage_count = usage_count + 1, updated_at_unix_ms = ?
WHERE id = ?
`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO kb_usage(entry_id, used_at_unix_ms, context, helpful, notes)
VALUES(?, ?, ?, ?, ?)
`, id, now, usageContext, helpfulVal, notes); err != nil {
		return err
	}

	return tx.Commit()
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=3000;`); err != nil {
		return fmt.Errorf("pragma busy_timeout: %w", err)
	}
	return migrateSchema(db)
}

func migrateSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	const targetVersion = 1

	var v int
	if err := db.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return fmt.Errorf("pragma user_version: %w", err)
	}
	if v >= targetVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS kb_entries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  public_id TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  problem TEXT NOT NULL,
  solution TEXT NOT NULL,
  categories TEXT NOT NULL DEFAULT '["general"]',
  product TEXT NOT NULL DEFAULT '',
  api_version TEXT NOT NULL DEFAULT '',
  code_examples TEXT NOT NULL DEFAULT '',
  tags TEXT NOT NULL DEFAULT '',
  notes TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT 'manual',
  created_at_unix_ms INTEGER NOT NULL,
  updated_at_unix_ms INTEGER NOT NULL,
  usage_count INTEGER NOT NULL DEFAULT 0,
  effectiveness_score REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_kb_entries_created ON kb_entries(created_at_unix_ms DESC, id DESC);
CREATE TABLE IF NOT EXISTS kb_usage (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  entry_id INTEGER NOT NULL,
  used_at_unix_ms INTEGER NOT NULL,
  context TEXT NOT NULL DEFAULT '',
  helpful INTEGER,
  notes TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_kb_usage_entry ON kb_usage(entry_id, used_at_unix_ms ASC);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE VIRTUAL TABLE IF NOT EXISTS kb_entries_fts USING fts5(
  title, problem, solution, tags, code_examples
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version=%d;`, targetVersion)); err != nil {
		return err
	}
	return tx.Commit()
}
