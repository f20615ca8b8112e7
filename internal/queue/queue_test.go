package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestInMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(4)
	require.NoError(t, q.Publish(ctx, Message{Type: "login", Body: json.RawMessage(`{"a":1}`)}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := receive(t, ch)
	assert.Equal(t, "login", msg.Type)
	assert.JSONEq(t, `{"a":1}`, string(msg.Body))

	cancel()
	for range ch {
	}
}

func TestInMemoryPublishBlocksUntilCancelled(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Publish(ctx, Message{Type: "x"}), context.DeadlineExceeded)
}

func TestRedisQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := NewRedisQueue(client, "")
	q.wait = 100 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, Message{Type: "session", Body: json.RawMessage(`{"collegeId":"BT25CSE001"}`)}))
	require.NoError(t, q.Publish(ctx, Message{Type: "login", Body: json.RawMessage(`{}`)}))
	// garbage is skipped
	require.NoError(t, client.LPush(ctx, "campus:audit", "not json").Err())

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	assert.Equal(t, "session", first.Type)
	assert.JSONEq(t, `{"collegeId":"BT25CSE001"}`, string(first.Body))
	assert.Equal(t, "login", receive(t, ch).Type)

	require.NoError(t, q.Publish(ctx, Message{Type: "late", Body: json.RawMessage(`null`)}))
	assert.Equal(t, "late", receive(t, ch).Type)
}
