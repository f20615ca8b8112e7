// Package audit moves login analytics off the request path: the API
// publishes events to a queue and a consumer writes them to the document
// store for the admin dashboard.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"campus/internal/docstore"
	"campus/internal/metrics"
	"campus/internal/queue"
	"campus/internal/session"
)

// Collections the consumer writes to.
const (
	LoginsCollection   = "logins"
	SessionsCollection = "sessions"
)

const (
	typeLogin   = "login"
	typeSession = "session"
)

type event struct {
	CollegeID string    `json:"collegeId"`
	Type      string    `json:"type,omitempty"`
	At        time.Time `json:"at"`
}

// Recorder publishes audit events. It satisfies session.Auditor.
type Recorder struct {
	q   queue.Queue
	now func() time.Time
}

// NewRecorder builds a recorder publishing to q.
func NewRecorder(q queue.Queue) *Recorder {
	return &Recorder{q: q, now: time.Now}
}

// Login records a login of the given kind.
func (r *Recorder) Login(ctx context.Context, collegeID string, kind session.Kind) error {
	return r.publish(ctx, typeLogin, event{CollegeID: collegeID, Type: string(kind), At: r.now().UTC()})
}

// SessionStart records an app session.
func (r *Recorder) SessionStart(ctx context.Context, collegeID string) error {
	return r.publish(ctx, typeSession, event{CollegeID: collegeID, At: r.now().UTC()})
}

func (r *Recorder) publish(ctx context.Context, typ string, ev event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.q.Publish(ctx, queue.Message{Type: typ, Body: body})
}

// Consumer drains the audit queue into the document store.
type Consumer struct {
	q     queue.Queue
	store docstore.Store
	log   *zap.Logger
}

// NewConsumer builds a consumer.
func NewConsumer(q queue.Queue, store docstore.Store, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{q: q, store: store, log: log}
}

// Run processes messages until ctx is done. A message that cannot be
// written is logged and dropped.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if err := c.Handle(ctx, msg); err != nil {
			metrics.RemoteFailures.WithLabelValues("audit_write").Inc()
			c.log.Warn("audit event dropped", zap.String("type", msg.Type), zap.Error(err))
		}
	}
	return ctx.Err()
}

// Handle writes one event.
func (c *Consumer) Handle(ctx context.Context, msg queue.Message) error {
	var ev event
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		return fmt.Errorf("decode %s event: %w", msg.Type, err)
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	switch msg.Type {
	case typeLogin:
		_, err := c.store.Add(ctx, LoginsCollection, map[string]any{
			"collegeId": ev.CollegeID,
			"type":      ev.Type,
			"timestamp": ev.At,
		})
		return err
	case typeSession:
		_, err := c.store.Add(ctx, SessionsCollection, map[string]any{
			"collegeId": ev.CollegeID,
			"startTime": ev.At,
		})
		return err
	default:
		return fmt.Errorf("unknown audit event type %q", msg.Type)
	}
}
