package timetable

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"campus/internal/apperr"
	"campus/internal/docstore"
	"campus/internal/metrics"
	"campus/internal/session"
)

// Manager keeps one user's class catalog and attendance ledgers in sync with
// the document store and enforces the one-mark-per-class-per-day rule.
//
// Catalog paths are timetable/{collegeId}/classes/{classId}; ledgers live at
// attendance/{collegeId}_{classId} as {isoDate: status}.
type Manager struct {
	store   docstore.Store
	sess    session.Session
	log     *zap.Logger
	now     func() time.Time
	loc     *time.Location
	workers int

	mu       sync.Mutex
	classes  []Class
	ledgers  map[string]Ledger
	inflight map[markKey]struct{}
	// gen counts local ledger changes per class; refreshes compare it
	// to detect marks that landed while they were reading.
	gen map[string]uint64
	// deleted holds classes removed while a mark was still in flight.
	deleted map[string]bool
	subCtx   context.Context
	cancel   context.CancelFunc
	closed   bool
}

type markKey struct {
	classID string
	date    string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocation sets the zone used to derive today's date and weekday.
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithRefreshWorkers bounds concurrent ledger reads during a refresh.
func WithRefreshWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// NewManager builds a manager scoped to a registered session.
func NewManager(store docstore.Store, sess session.Session, opts ...Option) (*Manager, error) {
	if !sess.Registered() {
		return nil, apperr.ErrUnauthorized
	}
	m := &Manager{
		store:    store,
		sess:     sess,
		log:      zap.NewNop(),
		now:      time.Now,
		loc:      time.Local,
		workers:  8,
		ledgers:  make(map[string]Ledger),
		inflight: make(map[markKey]struct{}),
		gen:      make(map[string]uint64),
		deleted:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(zap.String("college_id", sess.CollegeID))
	return m, nil
}

func (m *Manager) catalogPath() string {
	return docstore.Join("timetable", m.sess.CollegeID, "classes")
}

func (m *Manager) ledgerPath(classID string) string {
	return docstore.Join("attendance", m.sess.CollegeID+"_"+classID)
}

// Today returns the ISO date and short weekday ("Mon") in the manager's zone.
func (m *Manager) Today() (date, weekday string) {
	t := m.now().In(m.loc)
	return t.Format("2006-01-02"), t.Weekday().String()[:3]
}

// Load subscribes to the class catalog. ctx bounds the subscription, not
// just this call. Every snapshot replaces the class list and refreshes the
// ledgers; the first one is applied before Load returns.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("timetable: manager closed")
	}
	if m.cancel != nil {
		m.mu.Unlock()
		return nil
	}
	m.subCtx, m.cancel = context.WithCancel(ctx)
	subCtx := m.subCtx
	m.mu.Unlock()

	stop, err := m.store.Subscribe(subCtx, m.catalogPath(), m.onSnapshot)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("catalog_subscribe").Inc()
		m.mu.Lock()
		m.cancel()
		m.cancel = nil
		m.mu.Unlock()
		return apperr.Remote("load timetable", err)
	}
	go func() {
		<-subCtx.Done()
		stop()
	}()
	return nil
}

// Close stops the subscription. Refreshes still in flight are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Manager) onSnapshot(docs []docstore.Document) {
	classes := make([]Class, 0, len(docs))
	for _, d := range docs {
		c, err := decodeClass(d)
		if err != nil {
			m.log.Warn("skipping malformed class", zap.String("path", d.Path), zap.Error(err))
			continue
		}
		classes = append(classes, c)
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.classes = classes
	ctx := m.subCtx
	m.mu.Unlock()

	m.RefreshAttendance(ctx)
}

// Classes returns a copy of the current class list.
func (m *Manager) Classes() []Class {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Class, len(m.classes))
	copy(out, m.classes)
	return out
}

// Ledger returns a copy of a class's ledger and whether it is loaded.
func (m *Manager) Ledger(classID string) (Ledger, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ledgers[classID]
	if !ok {
		return nil, false
	}
	return l.clone(), true
}

// RefreshAttendance reads every class's ledger concurrently. A failed read
// is logged and leaves that class without stats; the others still land.
func (m *Manager) RefreshAttendance(ctx context.Context) {
	m.mu.Lock()
	classes := make([]Class, len(m.classes))
	copy(classes, m.classes)
	gens := make([]uint64, len(classes))
	for i, c := range classes {
		gens[i] = m.gen[c.ID]
	}
	m.mu.Unlock()

	type result struct {
		ledger Ledger
		ok     bool
	}
	results := make([]result, len(classes))
	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, c := range classes {
		i, c := i, c
		g.Go(func() error {
			ledger, err := m.fetchLedger(ctx, c.ID)
			if err != nil {
				metrics.RemoteFailures.WithLabelValues("ledger_get").Inc()
				m.log.Warn("attendance refresh failed", zap.String("class_id", c.ID), zap.Error(err))
				return nil
			}
			results[i] = result{ledger: ledger, ok: true}
			return nil
		})
	}
	_ = g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	current := make(map[string]bool, len(m.classes))
	for _, c := range m.classes {
		current[c.ID] = true
	}
	for id := range m.ledgers {
		if !current[id] {
			delete(m.ledgers, id)
		}
	}
	for id := range m.gen {
		if !current[id] {
			delete(m.gen, id)
		}
	}
	for i, c := range classes {
		if !current[c.ID] {
			continue
		}
		if m.gen[c.ID] != gens[i] {
			// a local mark changed the ledger after this read started
			if results[i].ok {
				local := m.ledgers[c.ID]
				fresh := results[i].ledger
				for date, st := range local {
					if _, ok := fresh[date]; !ok {
						fresh[date] = st
					}
				}
				m.ledgers[c.ID] = fresh
			}
			continue
		}
		if !results[i].ok {
			delete(m.ledgers, c.ID)
			continue
		}
		fresh := results[i].ledger
		// keep optimistic marks whose write has not completed yet
		for key := range m.inflight {
			if key.classID != c.ID {
				continue
			}
			if st, ok := m.ledgers[c.ID][key.date]; ok {
				if _, remote := fresh[key.date]; !remote {
					fresh[key.date] = st
				}
			}
		}
		m.ledgers[c.ID] = fresh
	}
}

func (m *Manager) fetchLedger(ctx context.Context, classID string) (Ledger, error) {
	doc, err := m.store.Get(ctx, m.ledgerPath(classID))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Ledger{}, nil
		}
		return nil, err
	}
	return decodeLedger(doc), nil
}

// AddClass validates the form and appends a class to the remote catalog.
// The new class shows up through the catalog subscription.
func (m *Manager) AddClass(ctx context.Context, typ ClassType, name string, days []string) error {
	c, err := newClass(typ, name, days)
	if err != nil {
		return err
	}
	if _, err := m.store.Add(ctx, m.catalogPath(), c.document()); err != nil {
		metrics.RemoteFailures.WithLabelValues("catalog_add").Inc()
		m.log.Error("add class failed", zap.String("name", c.Name), zap.Error(err))
		return apperr.Remote("add class", err)
	}
	return nil
}

// DeleteClass removes the class locally first, then deletes the catalog
// document and its ledger. The two deletes share no transaction: a failed
// catalog delete restores the class locally and is returned; a failed
// ledger delete only leaves an unreachable ledger behind and is logged.
// A mark still writing when the class goes away removes the ledger it
// recreated and reports the class as not found.
func (m *Manager) DeleteClass(ctx context.Context, classID string) error {
	m.mu.Lock()
	idx := m.indexOf(classID)
	if idx < 0 {
		m.mu.Unlock()
		return apperr.ErrNotFound
	}
	removed := m.classes[idx]
	removedLedger, hadLedger := m.ledgers[classID]
	m.classes = append(m.classes[:idx:idx], m.classes[idx+1:]...)
	delete(m.ledgers, classID)
	m.mu.Unlock()

	if err := m.store.Delete(ctx, docstore.Join(m.catalogPath(), classID)); err != nil {
		metrics.RemoteFailures.WithLabelValues("catalog_delete").Inc()
		m.log.Error("delete class failed", zap.String("class_id", classID), zap.Error(err))
		m.mu.Lock()
		if m.indexOf(classID) < 0 {
			if idx > len(m.classes) {
				idx = len(m.classes)
			}
			m.classes = append(m.classes[:idx:idx], append([]Class{removed}, m.classes[idx:]...)...)
			if hadLedger {
				m.ledgers[classID] = removedLedger
			}
		}
		m.mu.Unlock()
		return apperr.Remote("delete class", err)
	}

	m.mu.Lock()
	if m.markingClass(classID) {
		m.deleted[classID] = true
	}
	delete(m.gen, classID)
	m.mu.Unlock()

	if err := m.store.Delete(ctx, m.ledgerPath(classID)); err != nil {
		metrics.RemoteFailures.WithLabelValues("ledger_delete").Inc()
		m.log.Warn("orphaned attendance ledger", zap.String("class_id", classID), zap.Error(err))
	}
	return nil
}

// MarkAttendance records today's status for a class.
//
// The class must meet today and must not already be marked. Concurrent
// calls for the same class and day are serialised by an in-flight guard and
// the store write is create-if-absent, so at most one status lands per day.
// The local ledger is updated before the write and reverted if it fails.
func (m *Manager) MarkAttendance(ctx context.Context, classID string, status Status) error {
	if status != Present && status != Absent {
		return apperr.Validation("status", "must be present or absent")
	}
	date, weekday := m.Today()
	key := markKey{classID: classID, date: date}

	m.mu.Lock()
	idx := m.indexOf(classID)
	if idx < 0 {
		m.mu.Unlock()
		return apperr.ErrNotFound
	}
	if !m.classes[idx].ScheduledOn(weekday) {
		m.mu.Unlock()
		metrics.AttendanceMarks.WithLabelValues(string(status), "not_scheduled").Inc()
		return &NotScheduledError{ClassID: classID, Weekday: weekday}
	}
	_, busy := m.inflight[key]
	_, marked := m.ledgers[classID][date]
	if busy || marked {
		m.mu.Unlock()
		metrics.AttendanceMarks.WithLabelValues(string(status), "already_marked").Inc()
		return &AlreadyMarkedError{ClassID: classID, Date: date}
	}
	m.inflight[key] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, key)
		if !m.markingClass(classID) {
			delete(m.deleted, classID)
		}
		m.mu.Unlock()
	}()

	remote, err := m.fetchLedger(ctx, classID)
	if err != nil {
		metrics.RemoteFailures.WithLabelValues("ledger_get").Inc()
		m.log.Error("mark attendance read failed", zap.String("class_id", classID), zap.Error(err))
		return apperr.Remote("mark attendance", err)
	}
	if _, ok := remote[date]; ok {
		m.adopt(classID, remote)
		metrics.AttendanceMarks.WithLabelValues(string(status), "already_marked").Inc()
		return &AlreadyMarkedError{ClassID: classID, Date: date}
	}

	m.mu.Lock()
	if m.indexOf(classID) < 0 {
		m.mu.Unlock()
		return apperr.ErrNotFound
	}
	ledger := remote.clone()
	ledger[date] = status
	m.ledgers[classID] = ledger
	m.gen[classID]++
	m.mu.Unlock()

	written, err := m.store.SetFieldIfAbsent(ctx, m.ledgerPath(classID), date, string(status))
	if err != nil {
		m.revert(classID, date, status)
		metrics.RemoteFailures.WithLabelValues("ledger_write").Inc()
		m.log.Error("mark attendance write failed", zap.String("class_id", classID), zap.Error(err))
		return apperr.Remote("mark attendance", err)
	}
	if !written {
		// another device marked first; show its status
		m.revert(classID, date, status)
		if remote, err := m.fetchLedger(ctx, classID); err == nil {
			m.adopt(classID, remote)
		} else {
			m.log.Warn("reload after lost mark failed", zap.String("class_id", classID), zap.Error(err))
		}
		metrics.AttendanceMarks.WithLabelValues(string(status), "already_marked").Inc()
		return &AlreadyMarkedError{ClassID: classID, Date: date}
	}

	m.mu.Lock()
	gone := m.deleted[classID]
	if gone {
		delete(m.ledgers, classID)
	}
	m.mu.Unlock()
	if gone {
		// the class was deleted while the write was in flight
		if err := m.store.Delete(ctx, m.ledgerPath(classID)); err != nil {
			metrics.RemoteFailures.WithLabelValues("ledger_delete").Inc()
			m.log.Warn("orphaned attendance ledger", zap.String("class_id", classID), zap.Error(err))
		}
		metrics.AttendanceMarks.WithLabelValues(string(status), "deleted").Inc()
		return apperr.ErrNotFound
	}
	metrics.AttendanceMarks.WithLabelValues(string(status), "ok").Inc()
	return nil
}

// adopt replaces the local ledger with a remote copy if the class still exists.
func (m *Manager) adopt(classID string, remote Ledger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(classID) >= 0 {
		m.ledgers[classID] = remote
		m.gen[classID]++
	}
}

// revert drops an optimistic mark unless something else replaced it.
func (m *Manager) revert(classID, date string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.ledgers[classID]; ok && l[date] == status {
		delete(l, date)
		m.gen[classID]++
	}
}

// markingClass reports whether any mark for classID is in flight. Callers
// hold m.mu.
func (m *Manager) markingClass(classID string) bool {
	for key := range m.inflight {
		if key.classID == classID {
			return true
		}
	}
	return false
}

func (m *Manager) indexOf(classID string) int {
	for i, c := range m.classes {
		if c.ID == classID {
			return i
		}
	}
	return -1
}
