package timetable

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"campus/internal/docstore"
	"campus/internal/metrics"
	"campus/internal/session"
)

// Registry hands out one loaded Manager per session and drops managers that
// sit idle.
type Registry struct {
	base  context.Context
	store docstore.Store
	log   *zap.Logger
	opts  []Option
	now   func() time.Time

	mu       sync.Mutex
	managers map[string]*entry
}

type entry struct {
	m        *Manager
	lastUsed time.Time
}

// NewRegistry builds a registry. Subscriptions are bound to base, so
// cancelling it stops every manager.
func NewRegistry(base context.Context, store docstore.Store, log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		base:     base,
		store:    store,
		log:      log,
		opts:     append([]Option{WithLogger(log)}, opts...),
		now:      time.Now,
		managers: make(map[string]*entry),
	}
}

// Get returns the session's manager, creating and loading it on first use.
func (r *Registry) Get(ctx context.Context, sess session.Session) (*Manager, error) {
	r.mu.Lock()
	if e, ok := r.managers[sess.ID]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		return e.m, nil
	}
	r.mu.Unlock()

	m, err := NewManager(r.store, sess, r.opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Load(r.base); err != nil {
		m.Close()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.managers[sess.ID]; ok {
		// lost a race with another request for the same session
		m.Close()
		e.lastUsed = r.now()
		return e.m, nil
	}
	r.managers[sess.ID] = &entry{m: m, lastUsed: r.now()}
	metrics.ActiveManagers.Inc()
	return m, nil
}

// Release closes the session's manager, typically at logout.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	e, ok := r.managers[sessionID]
	delete(r.managers, sessionID)
	r.mu.Unlock()
	if ok {
		e.m.Close()
		metrics.ActiveManagers.Dec()
	}
}

// Sweep closes managers unused for longer than maxIdle and returns how many
// were dropped.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	var stale []*Manager
	r.mu.Lock()
	for id, e := range r.managers {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e.m)
			delete(r.managers, id)
		}
	}
	r.mu.Unlock()
	for _, m := range stale {
		m.Close()
		metrics.ActiveManagers.Dec()
	}
	if len(stale) > 0 {
		r.log.Info("swept idle timetable managers", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Len reports how many managers are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Close releases every manager.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.managers
	r.managers = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range all {
		e.m.Close()
		metrics.ActiveManagers.Dec()
	}
}
