package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisFeed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewRedisFeed(client, "")
	changes, closeFeed, err := feed.Listen(ctx, "timetable/u1/classes")
	require.NoError(t, err)
	defer func() { _ = closeFeed() }()

	require.NoError(t, feed.Publish(ctx, "timetable/u1/classes"))
	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal received")
	}

	require.NoError(t, feed.Publish(ctx, "other"))
	select {
	case <-changes:
		t.Fatal("signal for an unrelated collection")
	case <-time.After(100 * time.Millisecond):
	}
}
