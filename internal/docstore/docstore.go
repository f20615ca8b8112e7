// Package docstore is a small document database abstraction: slash separated
// paths, merge writes and live collection snapshots. Backends are an in-memory
// store, Postgres (jsonb rows plus a Redis change feed) and Cloud Firestore.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is one stored document.
type Document struct {
	ID   string
	Path string
	Data map[string]any
}

// SnapshotFunc receives the full contents of a collection every time it
// changes. The slice is owned by the callee.
type SnapshotFunc func(docs []Document)

// Store is the set of operations the domain packages need from a document
// database.
type Store interface {
	// Add creates a document with a generated id in collection.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Get returns the document at path or apperr.ErrNotFound.
	Get(ctx context.Context, path string) (Document, error)
	// List returns every document of a collection.
	List(ctx context.Context, collection string) ([]Document, error)
	// Set writes data at path. With merge, keys not present in data are kept.
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	// SetFieldIfAbsent atomically sets one top level field when the document
	// does not already have it, creating the document if needed. It reports
	// whether the write happened.
	SetFieldIfAbsent(ctx context.Context, path, field string, value any) (bool, error)
	// Delete removes the document at path. Missing documents are not an error.
	Delete(ctx context.Context, path string) error
	// Subscribe calls fn with the current snapshot of collection before
	// returning, then again after every change until ctx is done or the
	// returned cancel func is called.
	Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (cancel func(), err error)
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// splitDoc returns the parent collection and id of a document path.
func splitDoc(path string) (collection, id string, err error) {
	segs := strings.Split(path, "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("docstore: %q is not a document path", path)
	}
	for _, s := range segs {
		if s == "" {
			return "", "", fmt.Errorf("docstore: %q has an empty segment", path)
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

func checkCollection(path string) error {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 1 {
		return fmt.Errorf("docstore: %q is not a collection path", path)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("docstore: %q has an empty segment", path)
		}
	}
	return nil
}

// Decode fills v, a pointer to a struct with json tags, from the document
// data. Every backend goes through the same JSON mapping so timestamps,
// numbers and arrays decode the same way regardless of storage.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", doc.Path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", doc.Path, err)
	}
	return nil
}
