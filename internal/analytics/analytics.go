// Package analytics computes the admin dashboard figures from the login and
// session audit collections.
package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"campus/internal/apperr"
	"campus/internal/audit"
	"campus/internal/docstore"
	"campus/internal/session"
)

// Count is a total with the number of distinct college ids behind it.
type Count struct {
	Total  int `json:"total"`
	Unique int `json:"unique"`
}

// Period holds one figure per reporting window.
type Period[T any] struct {
	Today T `json:"today"`
	Week  T `json:"week"`
	Month T `json:"month"`
}

// Stats is the dashboard.
type Stats struct {
	Logins      Period[Count] `json:"logins"`
	GuestLogins Period[int]   `json:"guestLogins"`
	Sessions    Period[Count] `json:"activeSessions"`
}

type record struct {
	CollegeID string     `json:"collegeId"`
	Type      string     `json:"type"`
	Timestamp *time.Time `json:"timestamp"`
	StartTime *time.Time `json:"startTime"`
}

// Service reads the audit collections.
type Service struct {
	store docstore.Store
	loc   *time.Location
	now   func() time.Time
}

// NewService builds a dashboard service reporting in loc.
func NewService(store docstore.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// Stats computes the dashboard. Weeks start on Sunday. Records without a
// timestamp are ignored.
func (s *Service) Stats(ctx context.Context, sess session.Session) (Stats, error) {
	if !sess.IsAdmin() {
		return Stats{}, apperr.ErrForbidden
	}
	var logins, sessions []record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		logins, err = s.load(gctx, audit.LoginsCollection)
		return err
	})
	g.Go(func() (err error) {
		sessions, err = s.load(gctx, audit.SessionsCollection)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, apperr.Remote("load analytics", err)
	}

	w := newWindows(s.now().In(s.loc))
	var st Stats
	var (
		loginIDs   [3]map[string]struct{}
		sessionIDs [3]map[string]struct{}
	)
	for i := range loginIDs {
		loginIDs[i] = map[string]struct{}{}
		sessionIDs[i] = map[string]struct{}{}
	}

	for _, r := range logins {
		if r.Timestamp == nil {
			continue
		}
		in := w.contains(r.Timestamp.In(s.loc))
		counts := [3]*Count{&st.Logins.Today, &st.Logins.Week, &st.Logins.Month}
		guests := [3]*int{&st.GuestLogins.Today, &st.GuestLogins.Week, &st.GuestLogins.Month}
		for i := range in {
			if !in[i] {
				continue
			}
			counts[i].Total++
			loginIDs[i][r.CollegeID] = struct{}{}
			if r.Type == string(session.KindGuest) {
				*guests[i]++
			}
		}
	}
	for _, r := range sessions {
		if r.StartTime == nil {
			continue
		}
		in := w.contains(r.StartTime.In(s.loc))
		counts := [3]*Count{&st.Sessions.Today, &st.Sessions.Week, &st.Sessions.Month}
		for i := range in {
			if in[i] {
				counts[i].Total++
				sessionIDs[i][r.CollegeID] = struct{}{}
			}
		}
	}
	st.Logins.Today.Unique, st.Logins.Week.Unique, st.Logins.Month.Unique = len(loginIDs[0]), len(loginIDs[1]), len(loginIDs[2])
	st.Sessions.Today.Unique, st.Sessions.Week.Unique, st.Sessions.Month.Unique = len(sessionIDs[0]), len(sessionIDs[1]), len(sessionIDs[2])
	return st, nil
}

func (s *Service) load(ctx context.Context, collection string) ([]record, error) {
	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]record, 0, len(docs))
	for _, d := range docs {
		var r record
		if err := docstore.Decode(d, &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type windows struct {
	day, week, month time.Time
}

func newWindows(now time.Time) windows {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return windows{
		day:   day,
		week:  day.AddDate(0, 0, -int(day.Weekday())),
		month: time.Date(y, m, 1, 0, 0, 0, 0, now.Location()),
	}
}

// contains reports membership in today, this week and this month.
func (w windows) contains(t time.Time) [3]bool {
	return [3]bool{
		within(t, w.day, w.day.AddDate(0, 0, 1)),
		within(t, w.week, w.week.AddDate(0, 0, 7)),
		within(t, w.month, w.month.AddDate(0, 1, 0)),
	}
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
