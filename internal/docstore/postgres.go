package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campus/internal/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	doc_id     TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection, created_at);
`

// Postgres stores documents as jsonb rows and fans out changes through a
// ChangeFeed so several API instances see each other's writes.
type Postgres struct {
	db   *sql.DB
	feed ChangeFeed
	log  *zap.Logger
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB, feed ChangeFeed, log *zap.Logger) *Postgres {
	if log == nil {
		log = zap.NewNop()
	}
	return &Postgres{db: db, feed: feed, log: log}
}

// EnsureSchema creates the documents table when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("docstore: ensure schema: %w", err)
	}
	return nil
}

// Add inserts a document with a uuid id.
func (p *Postgres) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, doc_id, data)
		VALUES ($1, $2, $3, $4::jsonb)
	`, Join(collection, id), collection, id, string(raw))
	if err != nil {
		return "", err
	}
	p.changed(ctx, collection)
	return id, nil
}

// Get loads one document.
func (p *Postgres) Get(ctx context.Context, path string) (Document, error) {
	if _, _, err := splitDoc(path); err != nil {
		return Document{}, err
	}
	row := p.db.QueryRowContext(ctx, `SELECT doc_id, data FROM documents WHERE path = $1`, path)
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, apperr.ErrNotFound
		}
		return Document{}, err
	}
	data, err := unmarshalData(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Path: path, Data: data}, nil
}

// List returns the collection in creation order.
func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT doc_id, path, data FROM documents
		WHERE collection = $1
		ORDER BY created_at, path
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var (
			doc Document
			raw []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Path, &raw); err != nil {
			return nil, err
		}
		if doc.Data, err = unmarshalData(raw); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Set upserts data; merge uses jsonb concatenation so unrelated keys survive.
func (p *Postgres) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	collection, id, err := splitDoc(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	update := `data = EXCLUDED.data`
	if merge {
		update = `data = documents.data || EXCLUDED.data`
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, doc_id, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (path) DO UPDATE SET `+update+`, updated_at = NOW()
	`, path, collection, id, string(raw))
	if err != nil {
		return err
	}
	p.changed(ctx, collection)
	return nil
}

// SetFieldIfAbsent relies on the conditional ON CONFLICT update; a row count
// of zero means the key was already present.
func (p *Postgres) SetFieldIfAbsent(ctx context.Context, path, field string, value any) (bool, error) {
	collection, id, err := splitDoc(path)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO documents (path, collection, doc_id, data)
		VALUES ($1, $2, $3, jsonb_build_object($4::text, $5::jsonb))
		ON CONFLICT (path) DO UPDATE
			SET data = documents.data || EXCLUDED.data, updated_at = NOW()
			WHERE NOT jsonb_exists(documents.data, $4::text)
	`, path, collection, id, field, string(raw))
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
	p.changed(ctx, collection)
	return true, nil
}

// Delete removes one document.
func (p *Postgres) Delete(ctx context.Context, path string) error {
	collection, _, err := splitDoc(path)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		p.changed(ctx, collection)
	}
	return nil
}

// Subscribe listens on the change feed before taking the first snapshot so
// no write between the two is missed.
func (p *Postgres) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (func(), error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(ctx)
	changes, closeFeed, err := p.feed.Listen(subCtx, collection)
	if err != nil {
		cancel()
		return nil, err
	}
	docs, err := p.List(subCtx, collection)
	if err != nil {
		cancel()
		_ = closeFeed()
		return nil, err
	}
	fn(docs)

	go func() {
		defer func() { _ = closeFeed() }()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				docs, err := p.List(subCtx, collection)
				if err != nil {
					if subCtx.Err() != nil {
						return
					}
					p.log.Warn("docstore snapshot reload failed", zap.String("collection", collection), zap.Error(err))
					continue
				}
				fn(docs)
			}
		}
	}()
	return cancel, nil
}

func (p *Postgres) changed(ctx context.Context, collection string) {
	if err := p.feed.Publish(ctx, collection); err != nil {
		p.log.Warn("docstore change publish failed", zap.String("collection", collection), zap.Error(err))
	}
}

func unmarshalData(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("docstore: corrupt document: %w", err)
	}
	return data, nil
}
