package complaints

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

var (
	alice = session.Session{ID: "a", CollegeID: "BT25CSE001", Kind: session.KindRegistered}
	bob   = session.Session{ID: "b", CollegeID: "BT24ECE002", Kind: session.KindRegistered}
	guest = session.Session{ID: "g", Kind: session.KindGuest}
)

func TestSubmitValidation(t *testing.T) {
	svc := NewService(docstore.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name string
		sess session.Session
		in   Input
		want func(error) bool
	}{
		{"guest", guest, Input{Message: "x"}, func(err error) bool { return err == apperr.ErrForbidden }},
		{"blank", alice, Input{Message: "   "}, apperr.IsValidation},
		{"bad type", alice, Input{Type: "Praise", Message: "x"}, apperr.IsValidation},
		{"bad subject", alice, Input{Subject: "Library", Message: "x"}, apperr.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.sess, tt.in)
			assert.True(t, tt.want(err), "got %v", err)
		})
	}
}

func TestSubmitAndList(t *testing.T) {
	store := docstore.NewMemory()
	svc := NewService(store)
	clock := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	ctx := context.Background()

	first, err := svc.Submit(ctx, alice, Input{Message: "Cold food"})
	require.NoError(t, err)
	assert.Equal(t, TypeComplaint, first.Type)
	assert.Equal(t, "Mess Complaint", first.Subject)

	clock = clock.Add(time.Hour)
	_, err = svc.Submit(ctx, bob, Input{Type: TypeFeedback, Subject: "Other", Message: "Nice fest"})
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	_, err = svc.Submit(ctx, alice, Input{Type: TypeFeedback, Subject: "Hostel Complaint", Message: "Water fixed"})
	require.NoError(t, err)

	mine, err := svc.ListMine(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "Water fixed", mine[0].Message)
	assert.Equal(t, "Cold food", mine[1].Message)
	assert.Equal(t, first.ID, mine[1].ID)

	_, err = svc.ListMine(ctx, guest)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
