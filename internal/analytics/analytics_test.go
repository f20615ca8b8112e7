package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/apperr"
	"campus/internal/docstore"
	"campus/internal/session"
)

var admin = session.Session{ID: "x", CollegeID: session.AdminID, Kind: session.KindAdmin, AdminAuthenticated: true}

func TestStats(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	// Wednesday 2026-10-21; the week started Sunday 2026-10-18.
	now := time.Date(2026, 10, 21, 15, 0, 0, 0, time.UTC)

	login := func(id, kind string, at time.Time) {
		_, err := store.Add(ctx, "logins", map[string]any{"collegeId": id, "type": kind, "timestamp": at})
		require.NoError(t, err)
	}
	sess := func(id string, at time.Time) {
		_, err := store.Add(ctx, "sessions", map[string]any{"collegeId": id, "startTime": at})
		require.NoError(t, err)
	}

	login("BT25CSE001", "registered", now.Add(-2*time.Hour))
	login("BT25CSE001", "registered", now.Add(-time.Hour))
	login("Guest", "guest", now.Add(-30*time.Minute))
	login("BT24ECE002", "registered", time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	login("Guest", "guest", time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC))
	login("BT23CSA003", "registered", time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC))
	_, err := store.Add(ctx, "logins", map[string]any{"collegeId": "BT25CSE009", "type": "registered"})
	require.NoError(t, err)

	sess("BT25CSE001", now.Add(-time.Hour))
	sess("BT24ECE002", time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC))

	svc := NewService(store, time.UTC)
	svc.now = func() time.Time { return now }

	st, err := svc.Stats(ctx, admin)
	require.NoError(t, err)

	assert.Equal(t, Count{Total: 3, Unique: 2}, st.Logins.Today)
	assert.Equal(t, Count{Total: 4, Unique: 3}, st.Logins.Week)
	assert.Equal(t, Count{Total: 5, Unique: 3}, st.Logins.Month)
	assert.Equal(t, Period[int]{Today: 1, Week: 1, Month: 2}, st.GuestLogins)
	assert.Equal(t, Count{Total: 1, Unique: 1}, st.Sessions.Today)
	assert.Equal(t, Count{Total: 1, Unique: 1}, st.Sessions.Week)
	assert.Equal(t, Count{Total: 2, Unique: 2}, st.Sessions.Month)
}

func TestStatsRequiresAdmin(t *testing.T) {
	svc := NewService(docstore.NewMemory(), time.UTC)
	_, err := svc.Stats(context.Background(), session.Session{ID: "x", CollegeID: session.AdminID, Kind: session.KindAdmin})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
