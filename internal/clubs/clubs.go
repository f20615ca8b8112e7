// Package clubs lists student clubs and tracks who follows them.
package clubs

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"campus/internal/apperr"
	"campus/internal/docstore"
	"campus/internal/session"
)

// FeedName is the file the club directory is published as.
const FeedName = "clubs.json"

// Contact holds a club's public handles.
type Contact struct {
	Email     string `json:"email,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

// Club is one entry of the directory.
type Club struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Logo        string  `json:"logo"`
	Description string  `json:"description"`
	Contact     Contact `json:"contact"`
}

// Listing is a club with its follower state for the caller.
type Listing struct {
	Club
	Followers int  `json:"followers"`
	Following bool `json:"following"`
}

// Getter fetches a JSON feed by name.
type Getter interface {
	GetJSON(ctx context.Context, name string, v any) error
}

// Service combines the directory feed with follower documents.
type Service struct {
	feed  Getter
	store docstore.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewService builds a club service.
func NewService(feed Getter, store docstore.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{feed: feed, store: store, log: log, now: time.Now}
}

func followersPath(club string) string {
	return docstore.Join("clubs", club, "followers")
}

// List returns every club with follower counts. A club whose followers
// cannot be read is still listed, with zero followers.
func (s *Service) List(ctx context.Context, sess session.Session) ([]Listing, error) {
	var dir struct {
		Clubs []Club `json:"clubs"`
	}
	if err := s.feed.GetJSON(ctx, FeedName, &dir); err != nil {
		return nil, apperr.Remote("fetch clubs", err)
	}

	out := make([]Listing, len(dir.Clubs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, c := range dir.Clubs {
		i, c := i, c
		out[i].Club = c
		if !validName(c.Name) {
			continue
		}
		g.Go(func() error {
			docs, err := s.store.List(gctx, followersPath(c.Name))
			if err != nil {
				s.log.Warn("club followers unavailable", zap.String("club", c.Name), zap.Error(err))
				return nil
			}
			out[i].Followers = len(docs)
			if sess.Registered() {
				for _, d := range docs {
					if d.ID == sess.CollegeID {
						out[i].Following = true
						break
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// ToggleFollow follows the club, or unfollows it if already followed, and
// reports the new state. Guests cannot follow.
func (s *Service) ToggleFollow(ctx context.Context, sess session.Session, club string) (bool, error) {
	if !sess.Registered() {
		return false, apperr.ErrForbidden
	}
	if !validName(club) {
		return false, apperr.Validation("name", "unknown club")
	}
	path := docstore.Join(followersPath(club), sess.CollegeID)
	_, err := s.store.Get(ctx, path)
	switch {
	case err == nil:
		if err := s.store.Delete(ctx, path); err != nil {
			return true, apperr.Remote("unfollow club", err)
		}
		return false, nil
	case errors.Is(err, apperr.ErrNotFound):
		if err := s.store.Set(ctx, path, map[string]any{"followedAt": s.now().UTC()}, false); err != nil {
			return false, apperr.Remote("follow club", err)
		}
		return true, nil
	default:
		return false, apperr.Remote("follow club", err)
	}
}

func validName(name string) bool {
	return strings.TrimSpace(name) != "" && !strings.Contains(name, "/")
}
