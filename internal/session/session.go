package session

import (
	"regexp"
	"strings"
	"time"

	"campus/internal/apperr"
)

// AdminID is the college id that opens the admin dashboard.
const AdminID = "ADMIN001"

// Kind distinguishes the three ways into the app.
type Kind string

const (
	KindRegistered Kind = "registered"
	KindAdmin      Kind = "admin"
	KindGuest      Kind = "guest"
)

var collegeIDPattern = regexp.MustCompile(`(?i)^BT\d{2}(CSE|CSA|CSH|CSD|ECE|ECI)\d{3}$`)

// Session is the identity context handed to every component for one login.
// It is created at login and removed at logout.
type Session struct {
	ID                 string    `json:"id"`
	CollegeID          string    `json:"college_id,omitempty"`
	Kind               Kind      `json:"kind"`
	AdminAuthenticated bool      `json:"admin_authenticated,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Registered reports whether the session belongs to a signed in user rather
// than a guest.
func (s Session) Registered() bool {
	return s.CollegeID != "" && s.Kind != KindGuest
}

// IsAdmin reports whether the session may use the admin dashboard.
func (s Session) IsAdmin() bool {
	return s.Kind == KindAdmin && s.AdminAuthenticated
}

// DisplayName is the name shown next to the user's posts.
func (s Session) DisplayName() string {
	switch {
	case s.CollegeID == AdminID:
		return "Admin"
	case s.CollegeID == "":
		return "Guest"
	default:
		return s.CollegeID
	}
}

// NormalizeCollegeID trims and upper-cases raw and checks it against the
// college id format. The admin id is accepted as is.
func NormalizeCollegeID(raw string) (string, Kind, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == AdminID {
		return id, KindAdmin, nil
	}
	if !collegeIDPattern.MatchString(id) {
		return "", "", apperr.Validation("college_id", "Please enter a valid college ID (e.g., BT25CSE001)")
	}
	return id, KindRegistered, nil
}
