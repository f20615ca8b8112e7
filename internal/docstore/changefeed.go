package docstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ChangeFeed tells subscribers that a collection changed. It carries no
// payload; listeners re-read the collection.
type ChangeFeed interface {
	Publish(ctx context.Context, collection string) error
	Listen(ctx context.Context, collection string) (<-chan struct{}, func() error, error)
}

// RedisFeed is a ChangeFeed over Redis pub/sub.
type RedisFeed struct {
	client *redis.Client
	prefix string
}

// NewRedisFeed publishes on channels named prefix+collection.
func NewRedisFeed(client *redis.Client, prefix string) *RedisFeed {
	if prefix == "" {
		prefix = "docstore:"
	}
	return &RedisFeed{client: client, prefix: prefix}
}

// Publish announces a change.
func (f *RedisFeed) Publish(ctx context.Context, collection string) error {
	return f.client.Publish(ctx, f.prefix+collection, "changed").Err()
}

// Listen returns a channel that receives a value after one or more changes.
// Bursts are coalesced into a single signal.
func (f *RedisFeed) Listen(ctx context.Context, collection string) (<-chan struct{}, func() error, error) {
	ps := f.client.Subscribe(ctx, f.prefix+collection)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("changefeed: subscribe %s: %w", collection, err)
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range ps.Channel() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, ps.Close, nil
}
