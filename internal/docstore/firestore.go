package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"campus/internal/apperr"
)

// Firestore is a Store backed by Cloud Firestore.
type Firestore struct {
	client *firestore.Client
	log    *zap.Logger
}

// NewFirestore initialises a Firebase app and its Firestore client. An empty
// credsFile falls back to application default credentials.
func NewFirestore(ctx context.Context, projectID, credsFile string, log *zap.Logger) (*Firestore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase: init app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: init firestore: %w", err)
	}
	return &Firestore{client: client, log: log}, nil
}

// Close releases the client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) collection(path string) (*firestore.CollectionRef, error) {
	if err := checkCollection(path); err != nil {
		return nil, err
	}
	ref := f.client.Collection(path)
	if ref == nil {
		return nil, fmt.Errorf("docstore: invalid collection %q", path)
	}
	return ref, nil
}

func (f *Firestore) doc(path string) (*firestore.DocumentRef, error) {
	if _, _, err := splitDoc(path); err != nil {
		return nil, err
	}
	ref := f.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("docstore: invalid document %q", path)
	}
	return ref, nil
}

// Add lets Firestore assign the id.
func (f *Firestore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	col, err := f.collection(collection)
	if err != nil {
		return "", err
	}
	ref, _, err := col.Add(ctx, data)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Get maps codes.NotFound to apperr.ErrNotFound.
func (f *Firestore) Get(ctx context.Context, path string) (Document, error) {
	ref, err := f.doc(path)
	if err != nil {
		return Document{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Document{}, apperr.ErrNotFound
		}
		return Document{}, err
	}
	return Document{ID: ref.ID, Path: path, Data: snap.Data()}, nil
}

// List iterates the collection.
func (f *Firestore) List(ctx context.Context, collection string) ([]Document, error) {
	col, err := f.collection(collection)
	if err != nil {
		return nil, err
	}
	iter := col.Documents(ctx)
	defer iter.Stop()
	var docs []Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Path: Join(collection, snap.Ref.ID), Data: snap.Data()})
	}
	return docs, nil
}

// Set uses MergeAll for merge writes.
func (f *Firestore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	ref, err := f.doc(path)
	if err != nil {
		return err
	}
	if merge {
		_, err = ref.Set(ctx, data, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, data)
	}
	return err
}

// SetFieldIfAbsent runs the read and the write in one transaction.
func (f *Firestore) SetFieldIfAbsent(ctx context.Context, path, field string, value any) (bool, error) {
	ref, err := f.doc(path)
	if err != nil {
		return false, err
	}
	var written bool
	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		written = false
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if snap != nil && snap.Exists() {
			if _, ok := snap.Data()[field]; ok {
				return nil
			}
		}
		written = true
		return tx.Set(ref, map[string]any{field: value}, firestore.MergeAll)
	})
	if err != nil {
		return false, err
	}
	return written, nil
}

// Delete removes the document; Firestore treats missing documents as success.
func (f *Firestore) Delete(ctx context.Context, path string) error {
	ref, err := f.doc(path)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx)
	return err
}

// Subscribe blocks for the first query snapshot, then streams the rest.
func (f *Firestore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (func(), error) {
	col, err := f.collection(collection)
	if err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(ctx)
	it := col.Snapshots(subCtx)

	docs, err := readSnapshot(it, collection)
	if err != nil {
		it.Stop()
		cancel()
		return nil, err
	}
	fn(docs)

	go func() {
		defer it.Stop()
		for {
			docs, err := readSnapshot(it, collection)
			if err != nil {
				if subCtx.Err() == nil && status.Code(err) != codes.Canceled {
					f.log.Warn("firestore snapshot stream ended", zap.String("collection", collection), zap.Error(err))
				}
				return
			}
			fn(docs)
		}
	}()
	return cancel, nil
}

func readSnapshot(it *firestore.QuerySnapshotIterator, collection string) ([]Document, error) {
	qs, err := it.Next()
	if err != nil {
		return nil, err
	}
	snaps, err := qs.Documents.GetAll()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(snaps))
	for _, s := range snaps {
		docs = append(docs, Document{ID: s.Ref.ID, Path: Join(collection, s.Ref.ID), Data: s.Data()})
	}
	return docs, nil
}
