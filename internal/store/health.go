package store

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health aggregates dependency probes for the health endpoint.
type Health struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewHealth returns an empty checker.
func NewHealth() *Health {
	return &Health{checks: make(map[string]Check)}
}

// Add registers a probe under name.
func (h *Health) Add(name string, c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = c
}

// AddPostgres registers a ping of db.
func (h *Health) AddPostgres(db *sql.DB) {
	h.Add("postgres", db.PingContext)
}

// AddRedis registers a ping of client.
func (h *Health) AddRedis(client *redis.Client) {
	h.Add("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
}

// Run probes every dependency with a shared timeout and returns "ok" or
// the error text per name, plus whether all passed.
func (h *Health) Run(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = h.checks[name]
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out := make(map[string]string, len(names))
	healthy := true
	for i, name := range names {
		if err := checks[i](ctx); err != nil {
			out[name] = err.Error()
			healthy = false
			continue
		}
		out[name] = "ok"
	}
	return out, healthy
}
