// Package complaints stores complaint and feedback submissions.
package complaints

import (
	"context"
	"sort"
	"strings"
	"time"

	"campus/internal/apperr"
	"campus/internal/docstore"
	"campus/internal/session"
)

const collection = "complaints"

// Submission kinds.
const (
	TypeComplaint = "Complaint"
	TypeFeedback  = "Feedback"
)

// Subjects a submission can be filed under.
var Subjects = []string{"Mess Complaint", "Hostel Complaint", "Other"}

// Submission is one stored complaint or feedback.
type Submission struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Type      string    `json:"type"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Input is the submission form.
type Input struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Service files and lists submissions.
type Service struct {
	store docstore.Store
	now   func() time.Time
}

// NewService builds a complaint service.
func NewService(store docstore.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Submit files a complaint or feedback. Type defaults to Complaint and
// subject to Mess Complaint, matching the form's initial state.
func (s *Service) Submit(ctx context.Context, sess session.Session, in Input) (Submission, error) {
	if !sess.Registered() {
		return Submission{}, apperr.ErrForbidden
	}
	if strings.TrimSpace(in.Message) == "" {
		return Submission{}, apperr.Validation("message", "Please write something.")
	}
	switch in.Type {
	case "":
		in.Type = TypeComplaint
	case TypeComplaint, TypeFeedback:
	default:
		return Submission{}, apperr.Validation("type", "must be Complaint or Feedback")
	}
	if in.Subject == "" {
		in.Subject = Subjects[0]
	} else if !knownSubject(in.Subject) {
		return Submission{}, apperr.Validation("subject", "unknown subject")
	}

	sub := Submission{
		Sender:    sess.CollegeID,
		Type:      in.Type,
		Subject:   in.Subject,
		Message:   in.Message,
		Timestamp: s.now().UTC(),
	}
	id, err := s.store.Add(ctx, collection, map[string]any{
		"sender":    sub.Sender,
		"type":      sub.Type,
		"subject":   sub.Subject,
		"message":   sub.Message,
		"timestamp": sub.Timestamp,
	})
	if err != nil {
		return Submission{}, apperr.Remote("submit complaint", err)
	}
	sub.ID = id
	return sub, nil
}

// ListMine returns the caller's submissions, newest first.
func (s *Service) ListMine(ctx context.Context, sess session.Session) ([]Submission, error) {
	if !sess.Registered() {
		return nil, apperr.ErrForbidden
	}
	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, apperr.Remote("list complaints", err)
	}
	out := make([]Submission, 0)
	for _, d := range docs {
		if sender, _ := d.Data["sender"].(string); sender != sess.CollegeID {
			continue
		}
		var sub Submission
		if err := docstore.Decode(d, &sub); err != nil {
			continue
		}
		sub.ID = d.ID
		out = append(out, sub)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func knownSubject(s string) bool {
	for _, k := range Subjects {
		if k == s {
			return true
		}
	}
	return false
}
