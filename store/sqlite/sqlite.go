/*
Package sqlite provides a SQLite-backed implementation of recon.Store.

PURPOSE:
  Persists the hierarchical document tree in a single documents table
  addressed by path. In production the same pattern applies to any
  document store with path addressing and bounded atomic batches.

SCHEMA:
  documents:
    path        TEXT PRIMARY KEY   full slash-separated path
    collection  TEXT NOT NULL      parent collection path (indexed)
    data        TEXT NOT NULL      JSON-encoded field map

  Filters and ordering are evaluated in Go with the engine's shared
  comparison rules (recon.MatchFilters / recon.SortDocuments), so the
  SQLite and in-memory adapters agree exactly. Collections here are
  operator-batch sized; pushing filters into SQL is a later optimization,
  not a correctness concern.

BATCH CONTRACT:
  BatchWrite wraps each batch in one SQL transaction: all-or-nothing, up
  to recon.MaxBatchSize operations. Oversized batches are rejected; the
  engine chunks with recon.ChunkOps.

WAL MODE:
  Opened with WAL for better crash recovery; readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/recon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
  repo := recon.NewRepo(store)

SEE ALSO:
  - recon/store.go: Interface definition and shared filter semantics
  - recon/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/recon-engine/recon"
)

// Store implements recon.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path       TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		data       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) GetDocument(ctx context.Context, path string) (recon.Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path = ?`, path).Scan(&data)
	if err == sql.ErrNoRows {
		return recon.Document{}, recon.ErrNotFound
	}
	if err != nil {
		return recon.Document{}, &recon.TransientError{Op: "get", Err: err}
	}

	fields, err := decodeFields(data)
	if err != nil {
		return recon.Document{}, fmt.Errorf("corrupt document %s: %w", path, err)
	}
	return recon.Document{Path: path, Fields: fields}, nil
}

func (s *Store) Query(ctx context.Context, collection string, filters []recon.Filter, order *recon.OrderBy) ([]recon.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, data FROM documents WHERE collection = ? ORDER BY path`, collection)
	if err != nil {
		return nil, &recon.TransientError{Op: "query", Err: err}
	}
	defer rows.Close()

	var out []recon.Document
	for rows.Next() {
		var path, data string
		if err := rows.Scan(&path, &data); err != nil {
			return nil, &recon.TransientError{Op: "query", Err: err}
		}
		fields, err := decodeFields(data)
		if err != nil {
			return nil, fmt.Errorf("corrupt document %s: %w", path, err)
		}
		doc := recon.Document{Path: path, Fields: fields}
		if recon.MatchFilters(doc, filters) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &recon.TransientError{Op: "query", Err: err}
	}

	recon.SortDocuments(out, order)
	return out, nil
}

func (s *Store) ListSubcollections(ctx context.Context, docPath string) ([]string, error) {
	prefix := docPath + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM documents WHERE collection LIKE ? ORDER BY collection`,
		prefix+"%")
	if err != nil {
		return nil, &recon.TransientError{Op: "list-subcollections", Err: err}
	}
	defer rows.Close()

	seen := map[string]bool{}
	var names []string
	for rows.Next() {
		var coll string
		if err := rows.Scan(&coll); err != nil {
			return nil, &recon.TransientError{Op: "list-subcollections", Err: err}
		}
		// Keep only collections nested DIRECTLY under the document.
		rest := coll[len(prefix):]
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" && !seen[rest] {
			seen[rest] = true
			names = append(names, rest)
		}
	}
	return names, rows.Err()
}

// =============================================================================
// WRITES
// =============================================================================

func (s *Store) BatchWrite(ctx context.Context, ops []recon.WriteOp) error {
	if len(ops) > recon.MaxBatchSize {
		return recon.ErrBatchTooLarge
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &recon.TransientError{Op: "batch-write", Err: err}
	}
	defer tx.Rollback()

	for _, op := range ops {
		switch op.Kind {
		case recon.WriteSet:
			data, err := json.Marshal(op.Fields)
			if err != nil {
				return fmt.Errorf("encode %s: %w", op.Path, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO documents (path, collection, data) VALUES (?, ?, ?)
				 ON CONFLICT(path) DO UPDATE SET data = excluded.data`,
				op.Path, parentCollection(op.Path), string(data))
			if err != nil {
				return &recon.TransientError{Op: "batch-write", Err: err}
			}
		case recon.WriteDelete:
			if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, op.Path); err != nil {
				return &recon.TransientError{Op: "batch-write", Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &recon.TransientError{Op: "batch-write", Err: err}
	}
	return nil
}

func parentCollection(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// =============================================================================
// FIELD ENCODING
// =============================================================================

// decodeFields parses the JSON field map, keeping integral numbers as
// int64 so epoch-millisecond and minor-unit values survive the round trip
// exactly.
func decodeFields(data string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return normalizeMap(raw), nil
}

func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		return normalizeMap(val)
	case []any:
		for i, inner := range val {
			val[i] = normalizeValue(inner)
		}
		return val
	default:
		return v
	}
}
