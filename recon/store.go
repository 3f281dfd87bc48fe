/*
store.go - Document-store interface and batch machinery

PURPOSE:
  Defines the interface between the engine and the underlying ledger
  store: a hierarchical document store addressed by slash-separated paths
  ("clients/acme/transactions/tx-001"). Different implementations back it
  with SQLite or in-memory maps.

KEY PIECES:
  Store:      get / query / atomic batch write / list subcollections
  ChunkOps:   splits large write sets into bounded atomic batches
  WithRetry:  bounded exponential backoff for transient store failures
  PurgeTree:  iterative (non-recursive) deletion of a document tree

BATCH CONTRACT:
  The store enforces a maximum batch size (MaxBatchSize). Each committed
  batch is an independent atomic unit; a failure mid-run leaves earlier
  batches committed. All writes in this engine are full-overwrite or
  deterministic-recompute, so re-running after a partial failure converges
  on the same final state.

TRANSIENT FAILURES:
  Implementations wrap network/timeout/quota failures in TransientError.
  WithRetry retries those with bounded backoff (max 3 attempts) before
  surfacing them as fatal.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite adapter
  - recon/store:  In-memory adapter for tests and dry runs

SEE ALSO:
  - repo.go: Typed accessors built on this interface
*/
package recon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxBatchSize is the store's ceiling on documents per atomic batch.
const MaxBatchSize = 500

// =============================================================================
// DOCUMENTS, FILTERS, WRITES
// =============================================================================

// Document is one stored record. Fields hold only flat, comparable values
// (string, int64, float64, bool) plus nested maps and slices that the
// engine never filters on.
type Document struct {
	Path   string
	Fields map[string]any
}

// Collection returns the path of the collection containing this document.
func (d Document) Collection() string {
	i := strings.LastIndex(d.Path, "/")
	if i < 0 {
		return ""
	}
	return d.Path[:i]
}

// ID returns the final path segment.
func (d Document) ID() string {
	i := strings.LastIndex(d.Path, "/")
	return d.Path[i+1:]
}

type FilterOp string

const (
	OpEqual        FilterOp = "=="
	OpGreater      FilterOp = ">"
	OpGreaterEqual FilterOp = ">="
	OpLessEqual    FilterOp = "<="
)

type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// OrderBy sorts query results by a single field.
type OrderBy struct {
	Field string
	Desc  bool
}

type WriteKind int

const (
	WriteSet WriteKind = iota // full-overwrite set
	WriteDelete
)

type WriteOp struct {
	Kind   WriteKind
	Path   string
	Fields map[string]any // ignored for WriteDelete
}

// Store is the hierarchical document store consumed by the engine.
// Reads within a single run are assumed consistent (snapshot-then-read);
// no transactional isolation is required across a whole run.
type Store interface {
	// GetDocument returns the document at path, or ErrNotFound.
	GetDocument(ctx context.Context, path string) (Document, error)

	// Query returns the documents of a collection matching all filters,
	// optionally ordered. A nil order leaves the result ordered by path.
	Query(ctx context.Context, collection string, filters []Filter, order *OrderBy) ([]Document, error)

	// BatchWrite applies up to MaxBatchSize operations atomically.
	// Returns ErrBatchTooLarge for oversized batches.
	BatchWrite(ctx context.Context, ops []WriteOp) error

	// ListSubcollections returns the names of the collections nested
	// directly under a document.
	ListSubcollections(ctx context.Context, docPath string) ([]string, error)
}

// =============================================================================
// SHARED FILTER/SORT EVALUATION
// =============================================================================
// Both adapters load a collection and evaluate filters with the same
// semantics, so the comparison rules live here.

// MatchFilters reports whether a document satisfies every filter.
// A missing field never matches.
func MatchFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc.Fields[f.Field]
		if !ok {
			return false
		}
		c, comparable := compareValues(v, f.Value)
		if !comparable {
			return false
		}
		switch f.Op {
		case OpEqual:
			if c != 0 {
				return false
			}
		case OpGreater:
			if c <= 0 {
				return false
			}
		case OpGreaterEqual:
			if c < 0 {
				return false
			}
		case OpLessEqual:
			if c > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// SortDocuments orders documents by a field, with path as tie-break so the
// result is deterministic regardless of map iteration order.
func SortDocuments(docs []Document, order *OrderBy) {
	sort.SliceStable(docs, func(i, j int) bool {
		if order != nil {
			a, aok := docs[i].Fields[order.Field]
			b, bok := docs[j].Fields[order.Field]
			if aok && bok {
				if c, ok := compareValues(a, b); ok && c != 0 {
					if order.Desc {
						return c > 0
					}
					return c < 0
				}
			}
		}
		return docs[i].Path < docs[j].Path
	})
}

// compareValues compares two field values of possibly differing numeric
// types. Integer money and millisecond timestamps stay exact: both fit in
// the float64 mantissa for any realistic magnitude.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case Money:
		return float64(n), true
	}
	return 0, false
}

// =============================================================================
// BATCH CHUNKING
// =============================================================================

// ChunkOps splits a write set into batches of at most size operations.
// Each chunk is an independent atomic unit.
func ChunkOps(ops []WriteOp, size int) [][]WriteOp {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	var chunks [][]WriteOp
	for len(ops) > 0 {
		n := size
		if len(ops) < n {
			n = len(ops)
		}
		chunks = append(chunks, ops[:n])
		ops = ops[n:]
	}
	return chunks
}

// WriteChunked commits a write set in bounded atomic batches, retrying
// each batch on transient failure.
func WriteChunked(ctx context.Context, s Store, ops []WriteOp, size int) error {
	for _, chunk := range ChunkOps(ops, size) {
		chunk := chunk
		if err := WithRetry(ctx, func() error { return s.BatchWrite(ctx, chunk) }); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// RETRY - Bounded exponential backoff for transient failures
// =============================================================================

const (
	retryAttempts    = 3
	retryBaseBackoff = 200 * time.Millisecond
)

// WithRetry runs fn up to retryAttempts times, backing off exponentially
// between attempts. Only transient errors are retried; everything else
// surfaces immediately.
func WithRetry(ctx context.Context, fn func() error) error {
	var err error
	backoff := retryBaseBackoff
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("retries exhausted: %w", err)
}

// =============================================================================
// TREE PURGE - Iterative deletion of a document tree
// =============================================================================

// maxPurgeDepth guards against pathological nesting. Real data is at most
// three levels deep (client / collection / document).
const maxPurgeDepth = 10

// PurgeTree deletes a document and everything nested beneath it, driven by
// an explicit work list instead of recursion. Deletions are committed in
// bounded batches, so an interrupted purge can simply be re-run: already
// committed batches stay deleted and the traversal converges.
//
// Returns the number of documents deleted.
func PurgeTree(ctx context.Context, s Store, rootPath string, batchSize int) (int, error) {
	type item struct {
		docPath string
		depth   int
	}

	deleted := 0
	var pending []WriteOp
	work := []item{{docPath: rootPath, depth: 0}}

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := WriteChunked(ctx, s, pending, batchSize); err != nil {
			return err
		}
		deleted += len(pending)
		pending = nil
		return nil
	}

	for len(work) > 0 {
		it := work[0]
		work = work[1:]

		if it.depth > maxPurgeDepth {
			return deleted, &DataIntegrityError{RecordID: it.docPath, Reason: "purge depth guard exceeded"}
		}

		subs, err := s.ListSubcollections(ctx, it.docPath)
		if err != nil {
			return deleted, err
		}
		for _, sub := range subs {
			docs, err := s.Query(ctx, it.docPath+"/"+sub, nil, nil)
			if err != nil {
				return deleted, err
			}
			for _, d := range docs {
				work = append(work, item{docPath: d.Path, depth: it.depth + 1})
			}
		}

		pending = append(pending, WriteOp{Kind: WriteDelete, Path: it.docPath})
		if len(pending) >= batchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}

	return deleted, flush()
}
