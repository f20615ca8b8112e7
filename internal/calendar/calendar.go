// Package calendar reads the academic calendar feed.
package calendar

import (
	"context"
	"sort"

	"campus/internal/apperr"
)

// FeedName is the file the calendar is published as.
const FeedName = "calender.json"

const (
	TypeHoliday  = "holiday"
	TypeEvent    = "event"
	TypeAcademic = "academic"
)

// Event is one calendar entry.
type Event struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Dated is an event together with its ISO date.
type Dated struct {
	Date string `json:"date"`
	Event
}

// Calendar maps ISO dates to events.
type Calendar map[string]Event

// IsHoliday reports whether date is marked as a holiday.
func (c Calendar) IsHoliday(date string) bool {
	return c[date].Type == TypeHoliday
}

// Next returns the earliest event of typ on or after from. ISO dates sort
// lexically, so plain string comparison is enough.
func (c Calendar) Next(typ, from string) (Dated, bool) {
	var (
		best  Dated
		found bool
	)
	for date, ev := range c {
		if ev.Type != typ || date < from {
			continue
		}
		if !found || date < best.Date {
			best, found = Dated{Date: date, Event: ev}, true
		}
	}
	return best, found
}

// Sorted returns every event in date order.
func (c Calendar) Sorted() []Dated {
	out := make([]Dated, 0, len(c))
	for date, ev := range c {
		out = append(out, Dated{Date: date, Event: ev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Summary is what the calendar and home screens show.
type Summary struct {
	Today           *Dated  `json:"today,omitempty"`
	UpcomingHoliday *Dated  `json:"upcomingHoliday,omitempty"`
	UpcomingEvent   *Dated  `json:"upcomingEvent,omitempty"`
	Events          []Dated `json:"events"`
}

// Summarize builds the screen summary relative to today.
func (c Calendar) Summarize(today string) Summary {
	s := Summary{Events: c.Sorted()}
	if ev, ok := c[today]; ok {
		s.Today = &Dated{Date: today, Event: ev}
	}
	if d, ok := c.Next(TypeHoliday, today); ok {
		s.UpcomingHoliday = &d
	}
	if d, ok := c.Next(TypeEvent, today); ok {
		s.UpcomingEvent = &d
	}
	return s
}

// Getter fetches a JSON feed by name.
type Getter interface {
	GetJSON(ctx context.Context, name string, v any) error
}

// Source loads the calendar from a feed.
type Source struct {
	feed Getter
}

// NewSource builds a calendar source.
func NewSource(feed Getter) *Source {
	return &Source{feed: feed}
}

// Fetch downloads the current calendar.
func (s *Source) Fetch(ctx context.Context) (Calendar, error) {
	var cal Calendar
	if err := s.feed.GetJSON(ctx, FeedName, &cal); err != nil {
		return nil, apperr.Remote("fetch calendar", err)
	}
	if cal == nil {
		cal = Calendar{}
	}
	return cal, nil
}
