package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is the in-process store used when USE_MOCK_DATASTORE is set and by
// tests. Safe for concurrent use; documents are deep-copied on the way in
// and out so callers can never alias internal state.
type Memory struct {
	mu    sync.RWMutex
	colls map[string]map[string]map[string]any

	failErr error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{colls: make(map[string]map[string]map[string]any)}
}

// SetError forces every subsequent call to fail with err. Passing nil
// restores normal operation. Test hook for StoreUnavailable paths.
func (m *Memory) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

func (m *Memory) Create(ctx context.Context, coll string, data map[string]any, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return "", m.failErr
	}
	if id == "" {
		id = newDocumentID()
	}
	docs, ok := m.colls[coll]
	if !ok {
		docs = make(map[string]map[string]any)
		m.colls[coll] = docs
	}
	if _, exists := docs[id]; exists {
		return "", fmt.Errorf("create %s/%s: %w", coll, id, ErrConstraint)
	}
	docs[id] = copyDoc(data)
	return id, nil
}

func (m *Memory) Get(ctx context.Context, coll, id string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	doc, ok := m.colls[coll][id]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, ErrNotFound)
	}
	return copyDoc(doc), nil
}

func (m *Memory) Update(ctx context.Context, coll, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	doc, ok := m.colls[coll][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", coll, id, ErrNotFound)
	}
	for k, v := range copyDoc(patch) {
		doc[k] = v
	}
	return nil
}

func (m *Memory) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if _, ok := m.colls[coll][id]; !ok {
		return fmt.Errorf("delete %s/%s: %w", coll, id, ErrNotFound)
	}
	delete(m.colls[coll], id)
	return nil
}

func (m *Memory) Query(ctx context.Context, coll string, filters []Filter, opts ...QueryOption) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return nil, m.failErr
	}

	var out []Document
	for id, doc := range m.colls[coll] {
		if matchAll(doc, filters) {
			out = append(out, Document{ID: id, Data: copyDoc(doc)})
		}
	}
	// Deterministic base order before any explicit ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if cfg.hasOrder {
		sortDocs(out, cfg.orderBy, cfg.desc)
	}
	if cfg.hasLimit && len(out) > cfg.limit {
		out = out[:cfg.limit]
	}
	return out, nil
}

func (m *Memory) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	names := make([]string, 0, len(m.colls))
	for name := range m.colls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failErr
}

func (m *Memory) Close() error { return nil }

// copyDoc deep-copies maps and slices; scalar values are shared (they are
// immutable from the caller's point of view).
func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyDoc(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = copyValue(e)
		}
		return s
	default:
		return v
	}
}
