package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campus/internal/apperr"
)

// Auditor records login analytics. Failures are logged by the service and
// never block a login.
type Auditor interface {
	Login(ctx context.Context, collegeID string, kind Kind) error
	SessionStart(ctx context.Context, collegeID string) error
}

// Service creates and ends sessions.
type Service struct {
	store         Store
	audit         Auditor
	adminPassword string
	ttl           time.Duration
	log           *zap.Logger
	now           func() time.Time
}

// NewService wires a Service. audit may be nil.
func NewService(store Store, audit Auditor, adminPassword string, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:         store,
		audit:         audit,
		adminPassword: adminPassword,
		ttl:           ttl,
		log:           log,
		now:           time.Now,
	}
}

// Login validates a college id and opens a session for it.
func (s *Service) Login(ctx context.Context, rawID string) (Session, error) {
	id, kind, err := NormalizeCollegeID(rawID)
	if err != nil {
		return Session{}, err
	}
	sess := Session{ID: uuid.NewString(), CollegeID: id, Kind: kind, CreatedAt: s.now().UTC()}
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		return Session{}, apperr.Remote("login", err)
	}
	s.record(ctx, id, kind)
	s.log.Info("login", zap.String("college_id", id), zap.String("kind", string(kind)))
	return sess, nil
}

// Guest opens an anonymous session.
func (s *Service) Guest(ctx context.Context) (Session, error) {
	sess := Session{ID: uuid.NewString(), Kind: KindGuest, CreatedAt: s.now().UTC()}
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		return Session{}, apperr.Remote("guest login", err)
	}
	s.record(ctx, "Guest", KindGuest)
	return sess, nil
}

// Load returns a live session or apperr.ErrUnauthorized.
func (s *Service) Load(ctx context.Context, id string) (Session, error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return Session{}, apperr.ErrUnauthorized
		}
		return Session{}, apperr.Remote("load session", err)
	}
	return sess, nil
}

// AuthenticateAdmin unlocks the admin dashboard for an admin session. The
// password is a single shared secret; it is not a security boundary.
func (s *Service) AuthenticateAdmin(ctx context.Context, id, password string) (Session, error) {
	sess, err := s.Load(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Kind != KindAdmin {
		return Session{}, apperr.ErrForbidden
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) != 1 {
		return Session{}, apperr.Validation("password", "Incorrect password")
	}
	sess.AdminAuthenticated = true
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		return Session{}, apperr.Remote("admin auth", err)
	}
	return sess, nil
}

// Logout ends the session.
func (s *Service) Logout(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.Remote("logout", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, collegeID string, kind Kind) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Login(ctx, collegeID, kind); err != nil {
		s.log.Warn("login audit failed", zap.String("college_id", collegeID), zap.Error(err))
	}
	if err := s.audit.SessionStart(ctx, collegeID); err != nil {
		s.log.Warn("session audit failed", zap.String("college_id", collegeID), zap.Error(err))
	}
}
