package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/docstore"
	"campus/internal/queue"
	"campus/internal/session"
)

func TestRecorderToConsumer(t *testing.T) {
	q := queue.NewInMemory(8)
	store := docstore.NewMemory()
	at := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)

	rec := NewRecorder(q)
	rec.now = func() time.Time { return at }
	var _ session.Auditor = rec

	ctx := context.Background()
	require.NoError(t, rec.Login(ctx, "BT25CSE001", session.KindRegistered))
	require.NoError(t, rec.SessionStart(ctx, "BT25CSE001"))
	require.NoError(t, q.Publish(ctx, queue.Message{Type: "bogus", Body: []byte(`{}`)}))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- NewConsumer(q, store, nil).Run(runCtx) }()

	require.Eventually(t, func() bool {
		logins, _ := store.List(ctx, LoginsCollection)
		sessions, _ := store.List(ctx, SessionsCollection)
		return len(logins) == 1 && len(sessions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	logins, err := store.List(ctx, LoginsCollection)
	require.NoError(t, err)
	var login struct {
		CollegeID string    `json:"collegeId"`
		Type      string    `json:"type"`
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, docstore.Decode(logins[0], &login))
	assert.Equal(t, "BT25CSE001", login.CollegeID)
	assert.Equal(t, "registered", login.Type)
	assert.True(t, login.Timestamp.Equal(at))

	sessions, err := store.List(ctx, SessionsCollection)
	require.NoError(t, err)
	assert.Contains(t, sessions[0].Data, "startTime")
}

func TestHandleRejectsGarbage(t *testing.T) {
	c := NewConsumer(queue.NewInMemory(1), docstore.NewMemory(), nil)
	assert.Error(t, c.Handle(context.Background(), queue.Message{Type: "login", Body: []byte("nope")}))
	assert.Error(t, c.Handle(context.Background(), queue.Message{Type: "other", Body: []byte(`{}`)}))
}
