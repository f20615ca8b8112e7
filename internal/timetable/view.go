package timetable

// View is the timetable screen: today's header plus one card per class.
type View struct {
	Date    string      `json:"date"`
	Weekday string      `json:"weekday"`
	Holiday bool        `json:"holiday"`
	Classes []ClassView `json:"classes"`
}

// ClassView is a class with its attendance stats. Present, Total and
// Percent are omitted when the ledger could not be loaded; Percent is also
// omitted while nothing has been marked.
type ClassView struct {
	ID             string    `json:"id"`
	Type           ClassType `json:"type"`
	Name           string    `json:"name"`
	Days           []string  `json:"days"`
	ScheduledToday bool      `json:"scheduledToday"`
	TodayStatus    Status    `json:"todayStatus,omitempty"`
	Present        *int      `json:"present,omitempty"`
	Total          *int      `json:"total,omitempty"`
	Percent        *int      `json:"percent,omitempty"`
	CanMark        bool      `json:"canMark"`
}

// View renders the current state. holiday comes from the academic calendar
// and disables marking for the day.
func (m *Manager) View(holiday bool) View {
	date, weekday := m.Today()
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{Date: date, Weekday: weekday, Holiday: holiday, Classes: make([]ClassView, 0, len(m.classes))}
	for _, c := range m.classes {
		cv := ClassView{
			ID:             c.ID,
			Type:           c.Type,
			Name:           c.Name,
			Days:           append([]string(nil), c.Days...),
			ScheduledToday: c.ScheduledOn(weekday),
		}
		ledger, loaded := m.ledgers[c.ID]
		if loaded {
			present, total := ledger.Counts()
			cv.Present, cv.Total = &present, &total
			if pct, ok := Percent(present, total); ok {
				cv.Percent = &pct
			}
			cv.TodayStatus = ledger[date]
		}
		_, busy := m.inflight[markKey{classID: c.ID, date: date}]
		cv.CanMark = cv.ScheduledToday && !holiday && cv.TodayStatus == "" && !busy
		v.Classes = append(v.Classes, cv)
	}
	return v
}
