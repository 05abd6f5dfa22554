package appstate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/washops/backend/internal/models"
	"github.com/example/washops/backend/internal/repository"
)

var (
	ErrNoSession    = errors.New("appstate: no such session")
	ErrInvalidLogin = errors.New("appstate: user id and access token are required")
)

// Login is what a successful sign-in hands to the console.
type Login struct {
	UserID              int64  `json:"user_id" binding:"required"`
	ShopID              int64  `json:"shop_id"`
	AccessToken         string `json:"access_token" binding:"required"`
	UnreadNotifications int    `json:"unread_notifications"`
}

// Teardown releases per-session resources when a session ends.
type Teardown func(sessionID uuid.UUID)

// Store is the process-wide application state: one entry per logged-in
// operator, created on login and torn down on logout.
type Store struct {
	repo *repository.SessionRepository

	mu        sync.RWMutex
	sessions  map[uuid.UUID]*models.ConsoleSession
	teardowns []Teardown
}

// NewStore creates a store backed by repo.
func NewStore(repo *repository.SessionRepository) *Store {
	return &Store{repo: repo, sessions: map[uuid.UUID]*models.ConsoleSession{}}
}

// OnEnd registers fn to run for every ended session.
func (s *Store) OnEnd(fn Teardown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardowns = append(s.teardowns, fn)
}

// Begin starts a session for a successful login.
func (s *Store) Begin(ctx context.Context, login Login) (*models.ConsoleSession, error) {
	token := strings.TrimSpace(login.AccessToken)
	if login.UserID <= 0 || token == "" {
		return nil, ErrInvalidLogin
	}
	session := &models.ConsoleSession{
		UserID:              login.UserID,
		ShopID:              login.ShopID,
		AccessToken:         token,
		UnreadNotifications: login.UnreadNotifications,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	cp := *session
	return &cp, nil
}

// Get returns the session, loading it from the database after a restart.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.ConsoleSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		cp := *session
		return &cp, nil
	}

	session, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	cp := *session
	return &cp, nil
}

// Touch marks the session as active now.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	s.mu.Lock()
	if session, ok := s.sessions[id]; ok {
		session.LastSeenAt = now
	}
	s.mu.Unlock()
	return s.repo.Touch(ctx, id, now)
}

// SetUnreadNotifications updates the operator's unread counter.
func (s *Store) SetUnreadNotifications(ctx context.Context, id uuid.UUID, count int) error {
	if count < 0 {
		count = 0
	}
	if err := s.repo.SetUnreadNotifications(ctx, id, count); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSession
		}
		return err
	}
	s.mu.Lock()
	if session, ok := s.sessions[id]; ok {
		session.UnreadNotifications = count
	}
	s.mu.Unlock()
	return nil
}

// End deletes the session and runs every registered teardown.
func (s *Store) End(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	teardowns := append([]Teardown(nil), s.teardowns...)
	s.mu.Unlock()

	for _, fn := range teardowns {
		fn(id)
	}
	return nil
}

// Idle returns the ids of sessions without activity since before.
func (s *Store) Idle(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	sessions, err := s.repo.ListIdle(ctx, before)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
	}
	return ids, nil
}

type ctxKey struct{}

// WithSession returns a context carrying session.
func WithSession(ctx context.Context, session *models.ConsoleSession) context.Context {
	return context.WithValue(ctx, ctxKey{}, session)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*models.ConsoleSession, bool) {
	session, ok := ctx.Value(ctxKey{}).(*models.ConsoleSession)
	return session, ok && session != nil
}
