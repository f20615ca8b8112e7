package mess

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/internal/apperr"
)

const sampleMenu = `{
	"TUESDAY": {"DINNER": ["Dal", "Roti"], "BREAKFAST": ["Poha"], "LUNCH": ["Rajma", "Rice"]},
	"MONDAY": {"SNACKS": ["Samosa"], "LUNCH": ["Chole"], "SPECIAL": ["Kheer"]},
	"FEAST": {"DINNER": ["Biryani"]}
}`

func parse(t *testing.T) Raw {
	t.Helper()
	var r Raw
	require.NoError(t, json.Unmarshal([]byte(sampleMenu), &r))
	return r
}

func TestOrdered(t *testing.T) {
	week := parse(t).Ordered()
	require.Len(t, week, 3)
	assert.Equal(t, "MONDAY", week[0].Day)
	assert.Equal(t, "TUESDAY", week[1].Day)
	assert.Equal(t, "FEAST", week[2].Day)

	var meals []string
	for _, m := range week[0].Meals {
		meals = append(meals, m.Name)
	}
	assert.Equal(t, []string{"LUNCH", "SNACKS", "SPECIAL"}, meals)

	meals = meals[:0]
	for _, m := range week[1].Meals {
		meals = append(meals, m.Name)
	}
	assert.Equal(t, []string{"BREAKFAST", "LUNCH", "DINNER"}, meals)
}

func TestCurrentMeal(t *testing.T) {
	r := parse(t)
	// 2026-10-20 is a Tuesday.
	at := func(h int) time.Time { return time.Date(2026, 10, 20, h, 0, 0, 0, time.UTC) }

	tests := []struct {
		hour  int
		meal  string
		items []string
	}{
		{8, "BREAKFAST", []string{"Poha"}},
		{11, "LUNCH", []string{"Rajma", "Rice"}},
		{17, "SNACKS", []string{"No menu found"}},
		{20, "DINNER", []string{"Dal", "Roti"}},
	}
	for _, tt := range tests {
		c := r.CurrentMeal(at(tt.hour))
		assert.Equal(t, "TUESDAY", c.Day)
		assert.Equal(t, tt.meal, c.Meal)
		assert.Equal(t, tt.items, c.Items)
	}

	c := r.CurrentMeal(time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"No menu found"}, c.Items)
}

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

func TestServiceGet(t *testing.T) {
	svc := NewService(stubFeed{body: sampleMenu}, time.UTC)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	menu, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MONDAY", menu.Current.Day)
	assert.Equal(t, []string{"Chole"}, menu.Current.Items)
	assert.Len(t, menu.Week, 3)

	_, err = NewService(stubFeed{err: errors.New("down")}, nil).Get(context.Background())
	assert.True(t, apperr.IsRemote(err))
}
