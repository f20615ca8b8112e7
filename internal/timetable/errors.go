package timetable

import (
	"errors"
	"fmt"
)

// ErrHoliday is returned by callers that refuse to mark attendance on a
// calendar holiday.
var ErrHoliday = errors.New("attendance cannot be marked on a holiday")

// NotScheduledError rejects a mark on a day the class does not meet.
type NotScheduledError struct {
	ClassID string
	Weekday string
}

func (e *NotScheduledError) Error() string {
	return fmt.Sprintf("You can only mark attendance on scheduled class days (class %s is not held on %s)", e.ClassID, e.Weekday)
}

// AlreadyMarkedError rejects a second mark for the same class and day.
type AlreadyMarkedError struct {
	ClassID string
	Date    string
}

func (e *AlreadyMarkedError) Error() string {
	return fmt.Sprintf("Attendance already marked for today (class %s, %s)", e.ClassID, e.Date)
}
