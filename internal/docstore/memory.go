package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"campus/internal/apperr"
)

// Memory is an in-process Store. Snapshots are delivered synchronously, in
// write order, on the goroutine that performed the write.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*memDoc
	seq  uint64

	// fanout serialises snapshot delivery; subscribers must not write to
	// the store from inside their callback.
	fanout  sync.Mutex
	subs    map[string]map[uint64]SnapshotFunc
	nextSub uint64
}

type memDoc struct {
	collection string
	id         string
	seq        uint64
	data       map[string]any
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]*memDoc),
		subs: make(map[string]map[uint64]SnapshotFunc),
	}
}

// Add creates a document with a uuid id.
func (m *Memory) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.seq++
	m.docs[Join(collection, id)] = &memDoc{collection: collection, id: id, seq: m.seq, data: cloneMap(data)}
	m.mu.Unlock()
	m.notify(collection)
	return id, nil
}

// Get returns a copy of the document at path.
func (m *Memory) Get(ctx context.Context, path string) (Document, error) {
	if _, _, err := splitDoc(path); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[path]
	if !ok {
		return Document{}, apperr.ErrNotFound
	}
	return Document{ID: d.id, Path: path, Data: cloneMap(d.data)}, nil
}

// List returns the documents of collection in creation order.
func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	return m.snapshot(collection), nil
}

// Set writes or merges data at path.
func (m *Memory) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	collection, id, err := splitDoc(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	d, ok := m.docs[path]
	switch {
	case !ok:
		m.seq++
		m.docs[path] = &memDoc{collection: collection, id: id, seq: m.seq, data: cloneMap(data)}
	case merge:
		for k, v := range data {
			d.data[k] = cloneValue(v)
		}
	default:
		d.data = cloneMap(data)
	}
	m.mu.Unlock()
	m.notify(collection)
	return nil
}

// SetFieldIfAbsent sets field under the store lock.
func (m *Memory) SetFieldIfAbsent(ctx context.Context, path, field string, value any) (bool, error) {
	collection, id, err := splitDoc(path)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	d, ok := m.docs[path]
	if !ok {
		m.seq++
		d = &memDoc{collection: collection, id: id, seq: m.seq, data: map[string]any{}}
		m.docs[path] = d
	}
	if _, exists := d.data[field]; exists {
		m.mu.Unlock()
		return false, nil
	}
	d.data[field] = cloneValue(value)
	m.mu.Unlock()
	m.notify(collection)
	return true, nil
}

// Delete removes the document at path.
func (m *Memory) Delete(ctx context.Context, path string) error {
	collection, _, err := splitDoc(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	_, ok := m.docs[path]
	delete(m.docs, path)
	m.mu.Unlock()
	if ok {
		m.notify(collection)
	}
	return nil
}

// Subscribe registers fn for collection snapshots.
func (m *Memory) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (func(), error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	m.fanout.Lock()
	m.nextSub++
	id := m.nextSub
	if m.subs[collection] == nil {
		m.subs[collection] = make(map[uint64]SnapshotFunc)
	}
	m.subs[collection][id] = fn
	fn(m.snapshot(collection))
	m.fanout.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			m.fanout.Lock()
			delete(m.subs[collection], id)
			if len(m.subs[collection]) == 0 {
				delete(m.subs, collection)
			}
			m.fanout.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return cancel, nil
}

func (m *Memory) notify(collection string) {
	m.fanout.Lock()
	defer m.fanout.Unlock()
	subs := m.subs[collection]
	if len(subs) == 0 {
		return
	}
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		subs[id](m.snapshot(collection))
	}
}

func (m *Memory) snapshot(collection string) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found []*memDoc
	for _, d := range m.docs {
		if d.collection == collection {
			found = append(found, d)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	docs := make([]Document, 0, len(found))
	for _, d := range found {
		docs = append(docs, Document{ID: d.id, Path: Join(collection, d.id), Data: cloneMap(d.data)})
	}
	return docs
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
