// Package mess serves the hostel mess menu.
package mess

import (
	"context"
	"sort"
	"strings"
	"time"

	"campus/internal/apperr"
)

// FeedName is the file the menu is published as.
const FeedName = "menu.json"

var (
	dayOrder  = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}
	mealOrder = []string{"BREAKFAST", "LUNCH", "SNACKS", "DINNER"}
)

// Raw is the feed as published: day -> meal -> items.
type Raw map[string]map[string][]string

// Meal is one meal of a day.
type Meal struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// Day is the menu for one weekday.
type Day struct {
	Day   string `json:"day"`
	Meals []Meal `json:"meals"`
}

// Current is the meal being served right now.
type Current struct {
	Day   string   `json:"day"`
	Meal  string   `json:"meal"`
	Items []string `json:"items"`
}

// Ordered returns the week in calendar order, Monday first. Days and meals
// the feed adds beyond the usual ones follow, alphabetically.
func (r Raw) Ordered() []Day {
	days := make([]Day, 0, len(r))
	for _, key := range orderKeys(r, dayOrder) {
		meals := r[key]
		d := Day{Day: key, Meals: make([]Meal, 0, len(meals))}
		for _, m := range orderKeys(meals, mealOrder) {
			d.Meals = append(d.Meals, Meal{Name: m, Items: meals[m]})
		}
		days = append(days, d)
	}
	return days
}

// CurrentMeal picks the meal for the local time t: breakfast before 11,
// lunch before 16, snacks before 19, dinner after.
func (r Raw) CurrentMeal(t time.Time) Current {
	day := strings.ToUpper(t.Weekday().String())
	var meal string
	switch h := t.Hour(); {
	case h < 11:
		meal = "BREAKFAST"
	case h < 16:
		meal = "LUNCH"
	case h < 19:
		meal = "SNACKS"
	default:
		meal = "DINNER"
	}
	c := Current{Day: day, Meal: meal, Items: []string{"No menu found"}}
	meals, ok := lookup(r, day)
	if !ok {
		return c
	}
	if items, ok := lookup(meals, meal); ok && len(items) > 0 {
		c.Items = items
	}
	return c
}

func lookup[V any](m map[string]V, key string) (V, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func orderKeys[V any](m map[string]V, known []string) []string {
	rank := make(map[string]int, len(known))
	for i, k := range known {
		rank[k] = i
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rank[strings.ToUpper(keys[i])]
		rj, jok := rank[strings.ToUpper(keys[j])]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// Getter fetches a JSON feed by name.
type Getter interface {
	GetJSON(ctx context.Context, name string, v any) error
}

// Service reads the menu feed.
type Service struct {
	feed Getter
	loc  *time.Location
	now  func() time.Time
}

// NewService builds a menu service that tells time in loc.
func NewService(feed Getter, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{feed: feed, loc: loc, now: time.Now}
}

// Menu is the week plus the meal currently being served.
type Menu struct {
	Current Current `json:"current"`
	Week    []Day   `json:"week"`
}

// Get downloads the menu.
func (s *Service) Get(ctx context.Context) (Menu, error) {
	var raw Raw
	if err := s.feed.GetJSON(ctx, FeedName, &raw); err != nil {
		return Menu{}, apperr.Remote("fetch menu", err)
	}
	return Menu{Current: raw.CurrentMeal(s.now().In(s.loc)), Week: raw.Ordered()}, nil
}
