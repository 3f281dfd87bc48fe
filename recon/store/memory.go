// Package store provides an in-memory Store implementation for tests and
// dry runs.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/recon-engine/recon"
)

// =============================================================================
// MEMORY STORE - In-memory document store (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	docs map[string]recon.Document

	// Writes counts committed write operations. Dry-run tests assert it
	// stays at zero.
	writes int
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]recon.Document)}
}

// Writes returns the number of write operations committed so far.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) GetDocument(_ context.Context, path string) (recon.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[path]
	if !ok {
		return recon.Document{}, recon.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (m *Memory) Query(_ context.Context, collection string, filters []recon.Filter, order *recon.OrderBy) ([]recon.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := collection + "/"
	var out []recon.Document
	for path, doc := range m.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		// Direct children only; deeper paths belong to subcollections.
		if strings.Contains(path[len(prefix):], "/") {
			continue
		}
		if recon.MatchFilters(doc, filters) {
			out = append(out, cloneDoc(doc))
		}
	}
	recon.SortDocuments(out, order)
	return out, nil
}

func (m *Memory) BatchWrite(_ context.Context, ops []recon.WriteOp) error {
	if len(ops) > recon.MaxBatchSize {
		return recon.ErrBatchTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// All-or-nothing: validation happened above, so applying cannot fail
	// partway through.
	for _, op := range ops {
		switch op.Kind {
		case recon.WriteSet:
			m.docs[op.Path] = cloneDoc(recon.Document{Path: op.Path, Fields: op.Fields})
		case recon.WriteDelete:
			delete(m.docs, op.Path)
		}
		m.writes++
	}
	return nil
}

func (m *Memory) ListSubcollections(_ context.Context, docPath string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := docPath + "/"
	seen := map[string]bool{}
	var names []string
	for path := range m.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		i := strings.Index(rest, "/")
		if i < 0 {
			continue // direct field-level child, not a subcollection document
		}
		name := rest[:i]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// cloneDoc guards callers against aliasing the stored field maps.
func cloneDoc(doc recon.Document) recon.Document {
	out := recon.Document{Path: doc.Path, Fields: make(map[string]any, len(doc.Fields))}
	for k, v := range doc.Fields {
		out.Fields[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}
