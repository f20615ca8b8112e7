package timetable

import (
	"math"
	"strings"

	"campus/internal/apperr"
	"campus/internal/docstore"
)

// ClassType is the kind of a class.
type ClassType string

const (
	Lecture ClassType = "Lecture"
	Lab     ClassType = "Lab"
)

// Status is an attendance mark.
type Status string

const (
	Present Status = "present"
	Absent  Status = "absent"
)

// Weekdays are the days a class can be scheduled on, in week order.
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Class is one entry of a user's class catalog.
type Class struct {
	ID   string    `json:"id"`
	Type ClassType `json:"type"`
	Name string    `json:"name"`
	Days []string  `json:"days"`
}

// ScheduledOn reports whether the class meets on weekday ("Mon", ...).
func (c Class) ScheduledOn(weekday string) bool {
	for _, d := range c.Days {
		if d == weekday {
			return true
		}
	}
	return false
}

// Ledger maps an ISO date to the status marked that day.
type Ledger map[string]Status

// Counts returns the number of present marks and of all marks.
func (l Ledger) Counts() (present, total int) {
	for _, s := range l {
		total++
		if s == Present {
			present++
		}
	}
	return present, total
}

// Percent is round(present/total*100), half away from zero. ok is false
// when nothing has been marked.
func Percent(present, total int) (pct int, ok bool) {
	if total == 0 {
		return 0, false
	}
	return int(math.Round(float64(present) / float64(total) * 100)), true
}

func (l Ledger) clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// newClass validates the add-class form and normalises days into week order.
func newClass(typ ClassType, name string, days []string) (Class, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(days) == 0 {
		return Class{}, apperr.Validation("", "Please enter class name and select days.")
	}
	switch typ {
	case "":
		typ = Lecture
	case Lecture, Lab:
	default:
		return Class{}, apperr.Validation("type", "must be Lecture or Lab")
	}
	selected := make(map[string]bool, len(days))
	for _, d := range days {
		if !validWeekday(d) {
			return Class{}, apperr.Validation("days", "unknown day "+d)
		}
		selected[d] = true
	}
	ordered := make([]string, 0, len(selected))
	for _, d := range Weekdays {
		if selected[d] {
			ordered = append(ordered, d)
		}
	}
	return Class{Type: typ, Name: name, Days: ordered}, nil
}

func validWeekday(d string) bool {
	for _, w := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

func (c Class) document() map[string]any {
	return map[string]any{"type": string(c.Type), "name": c.Name, "days": c.Days}
}

func decodeClass(doc docstore.Document) (Class, error) {
	var c Class
	if err := docstore.Decode(doc, &c); err != nil {
		return Class{}, err
	}
	c.ID = doc.ID
	return c, nil
}

func decodeLedger(doc docstore.Document) Ledger {
	l := make(Ledger, len(doc.Data))
	for date, v := range doc.Data {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if st := Status(s); st == Present || st == Absent {
			l[date] = st
		}
	}
	return l
}
