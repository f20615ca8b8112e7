package clubs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/apperr"
	"campus/internal/docstore"
	"campus/internal/session"
)

const directory = `{"clubs":[
	{"name":"Coding Club","type":"Technical","logo":"https://x/c.png","description":"We code","contact":{"email":"code@college.in","instagram":"@code"}},
	{"name":"Dance Club","type":"Cultural","logo":"","description":"We dance","contact":{}}
]}`

type stubFeed struct {
	body string
	err  error
}

func (s stubFeed) GetJSON(ctx context.Context, name string, v any) error {
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.body), v)
}

var (
	alice = session.Session{ID: "a", CollegeID: "BT25CSE001", Kind: session.KindRegistered}
	bob   = session.Session{ID: "b", CollegeID: "BT24ECE002", Kind: session.KindRegistered}
	guest = session.Session{ID: "g", Kind: session.KindGuest}
)

func TestFollowFlow(t *testing.T) {
	store := docstore.NewMemory()
	svc := NewService(stubFeed{body: directory}, store, nil)
	ctx := context.Background()

	following, err := svc.ToggleFollow(ctx, alice, "Coding Club")
	require.NoError(t, err)
	assert.True(t, following)
	_, err = svc.ToggleFollow(ctx, bob, "Coding Club")
	require.NoError(t, err)

	doc, err := store.Get(ctx, "clubs/Coding Club/followers/BT25CSE001")
	require.NoError(t, err)
	assert.Contains(t, doc.Data, "followedAt")

	list, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Coding Club", list[0].Name)
	assert.Equal(t, "code@college.in", list[0].Contact.Email)
	assert.Equal(t, 2, list[0].Followers)
	assert.True(t, list[0].Following)
	assert.Equal(t, 0, list[1].Followers)
	assert.False(t, list[1].Following)

	following, err = svc.ToggleFollow(ctx, alice, "Coding Club")
	require.NoError(t, err)
	assert.False(t, following)

	list, err = svc.List(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, list[0].Followers)
	assert.False(t, list[0].Following)
}

func TestToggleFollowRejects(t *testing.T) {
	svc := NewService(stubFeed{body: directory}, docstore.NewMemory(), nil)

	_, err := svc.ToggleFollow(context.Background(), guest, "Coding Club")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.ToggleFollow(context.Background(), alice, "a/b")
	assert.True(t, apperr.IsValidation(err))
}

func TestListFeedFailure(t *testing.T) {
	svc := NewService(stubFeed{err: errors.New("down")}, docstore.NewMemory(), nil)
	_, err := svc.List(context.Background(), alice)
	assert.True(t, apperr.IsRemote(err))
}
