// Package discussion is the campus-wide message board.
package discussion

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"campus/internal/apperr"
	"campus/internal/docstore"
	"campus/internal/session"
)

const collection = "messages"

// Message is one post.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Own       bool      `json:"own"`
}

// Item is a feed row: either a day separator or a message.
type Item struct {
	Type    string   `json:"type"`
	Day     string   `json:"day,omitempty"`
	Time    string   `json:"time,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// Board reads and writes messages.
type Board struct {
	store docstore.Store
	log   *zap.Logger
	loc   *time.Location
	now   func() time.Time
}

// NewBoard builds a board that groups days in loc.
func NewBoard(store docstore.Store, loc *time.Location, log *zap.Logger) *Board {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{store: store, log: log, loc: loc, now: time.Now}
}

// Send posts content as the session's display name. Blank content is
// ignored and returns a nil message.
func (b *Board) Send(ctx context.Context, sess session.Session, content string) (*Message, error) {
	if !sess.Registered() {
		return nil, apperr.ErrForbidden
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	msg := Message{Sender: sess.DisplayName(), Content: content, Timestamp: b.now().UTC(), Own: true}
	id, err := b.store.Add(ctx, collection, map[string]any{
		"sender":    msg.Sender,
		"content":   msg.Content,
		"timestamp": msg.Timestamp,
	})
	if err != nil {
		b.log.Error("send message failed", zap.String("sender", msg.Sender), zap.Error(err))
		return nil, apperr.Remote("send message", err)
	}
	msg.ID = id
	return &msg, nil
}

// Messages returns every message, oldest first.
func (b *Board) Messages(ctx context.Context, sess session.Session) ([]Message, error) {
	docs, err := b.store.List(ctx, collection)
	if err != nil {
		return nil, apperr.Remote("list messages", err)
	}
	msgs := make([]Message, 0, len(docs))
	me := sess.DisplayName()
	for _, d := range docs {
		var m Message
		if err := docstore.Decode(d, &m); err != nil {
			b.log.Warn("skipping malformed message", zap.String("id", d.ID), zap.Error(err))
			continue
		}
		m.ID = d.ID
		m.Own = sess.Registered() && m.Sender == me
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
	return msgs, nil
}

// Feed returns the messages with a separator before the first message of
// each calendar day.
func (b *Board) Feed(ctx context.Context, sess session.Session) ([]Item, error) {
	msgs, err := b.Messages(ctx, sess)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(msgs)+4)
	var lastDay string
	for i := range msgs {
		local := msgs[i].Timestamp.In(b.loc)
		day := local.Format("Monday, 02 Jan 2006")
		if day != lastDay {
			items = append(items, Item{Type: "separator", Day: day})
			lastDay = day
		}
		items = append(items, Item{Type: "message", Time: local.Format("03:04 PM"), Message: &msgs[i]})
	}
	return items, nil
}

// Recent returns the newest n messages, oldest first.
func (b *Board) Recent(ctx context.Context, sess session.Session, n int) ([]Message, error) {
	msgs, err := b.Messages(ctx, sess)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

// Delete removes one of the caller's own messages.
func (b *Board) Delete(ctx context.Context, sess session.Session, id string) error {
	if !sess.Registered() {
		return apperr.ErrForbidden
	}
	if id == "" || strings.Contains(id, "/") {
		return apperr.ErrNotFound
	}
	path := docstore.Join(collection, id)
	doc, err := b.store.Get(ctx, path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Remote("delete message", err)
	}
	if sender, _ := doc.Data["sender"].(string); sender != sess.DisplayName() {
		return apperr.ErrForbidden
	}
	if err := b.store.Delete(ctx, path); err != nil {
		return apperr.Remote("delete message", err)
	}
	return nil
}
