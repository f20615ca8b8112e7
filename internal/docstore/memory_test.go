package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/apperr"
)

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Add(ctx, "timetable/u1/classes", map[string]any{"name": "DSA", "days": []string{"Mon"}})
	require.NoError(t, err)

	doc, err := m.Get(ctx, Join("timetable/u1/classes", id))
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "DSA", doc.Data["name"])

	_, err = m.Get(ctx, "timetable/u1/classes/missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, m.Delete(ctx, doc.Path))
	require.NoError(t, m.Delete(ctx, doc.Path), "deleting twice is not an error")
	docs, err := m.List(ctx, "timetable/u1/classes")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryPathValidation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Add(ctx, "timetable/u1", nil)
	assert.Error(t, err)
	_, err = m.Get(ctx, "attendance")
	assert.Error(t, err)
	assert.Error(t, m.Set(ctx, "a//b", nil, false))
}

func TestMemorySetMerge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	path := "attendance/u1_c1"

	require.NoError(t, m.Set(ctx, path, map[string]any{"2026-10-19": "present"}, true))
	require.NoError(t, m.Set(ctx, path, map[string]any{"2026-10-20": "absent"}, true))
	doc, err := m.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"2026-10-19": "present", "2026-10-20": "absent"}, doc.Data)

	require.NoError(t, m.Set(ctx, path, map[string]any{"2026-10-21": "present"}, false))
	doc, err = m.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"2026-10-21": "present"}, doc.Data)
}

func TestMemorySetFieldIfAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	path := "attendance/u1_c1"

	ok, err := m.SetFieldIfAbsent(ctx, path, "2026-10-19", "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetFieldIfAbsent(ctx, path, "2026-10-19", "absent")
	require.NoError(t, err)
	assert.False(t, ok)

	doc, err := m.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "present", doc.Data["2026-10-19"])
}

func TestMemorySetFieldIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		written int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.SetFieldIfAbsent(ctx, "attendance/u_c", "2026-10-19", "present")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				written++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, written)
}

func TestMemorySubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory()
	col := "timetable/u1/classes"
	_, err := m.Add(ctx, col, map[string]any{"name": "first"})
	require.NoError(t, err)

	var snapshots [][]Document
	stop, err := m.Subscribe(ctx, col, func(docs []Document) {
		snapshots = append(snapshots, docs)
	})
	require.NoError(t, err)
	require.Len(t, snapshots, 1, "initial snapshot is delivered before Subscribe returns")
	assert.Len(t, snapshots[0], 1)

	id, err := m.Add(ctx, col, map[string]any{"name": "second"})
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, "first", snapshots[1][0].Data["name"])
	assert.Equal(t, "second", snapshots[1][1].Data["name"])

	// writes to other collections do not notify
	require.NoError(t, m.Set(ctx, "attendance/u1_x", map[string]any{"a": "b"}, true))
	assert.Len(t, snapshots, 2)

	require.NoError(t, m.Delete(ctx, Join(col, id)))
	require.Len(t, snapshots, 3)
	assert.Len(t, snapshots[2], 1)

	stop()
	_, err = m.Add(ctx, col, map[string]any{"name": "third"})
	require.NoError(t, err)
	assert.Len(t, snapshots, 3)
}

func TestMemorySubscribeStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemory()
	col := "messages"

	var mu sync.Mutex
	calls := 0
	_, err := m.Subscribe(ctx, col, func([]Document) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		m.fanout.Lock()
		defer m.fanout.Unlock()
		return len(m.subs[col]) == 0
	}, time.Second, 5*time.Millisecond)

	_, err = m.Add(context.Background(), col, map[string]any{"content": "hi"})
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestDecode(t *testing.T) {
	ts := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	doc := Document{Path: "messages/1", Data: map[string]any{
		"sender":    "BT25CSE001",
		"timestamp": ts,
		"days":      []any{"Mon", "Wed"},
	}}
	var v struct {
		Sender    string    `json:"sender"`
		Timestamp time.Time `json:"timestamp"`
		Days      []string  `json:"days"`
	}
	require.NoError(t, Decode(doc, &v))
	assert.Equal(t, "BT25CSE001", v.Sender)
	assert.True(t, ts.Equal(v.Timestamp))
	assert.Equal(t, []string{"Mon", "Wed"}, v.Days)
}
