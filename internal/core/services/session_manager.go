package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/metrics"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
)

const (
	sessionIdleTimeout  = 30 * time.Minute
	sessionReapInterval = time.Minute
)

type managedSession struct {
	session *Session
	cancel  context.CancelFunc
}

// SessionManager opens one Session per player and reaps idle ones.
type SessionManager struct {
	store   ports.SessionStore
	players ports.PlayerRepository
	jobRows ports.JobStatusRepository
	deps    SessionDeps

	// NewRand seeds the random source of each session.
	NewRand     func() Random
	IdleTimeout time.Duration
	// Presence keeps sessions with a live connection out of Reap.
	Presence ports.Presence

	mu       sync.RWMutex
	sessions map[string]*managedSession
	// opening collapses concurrent first opens of one player into one load.
	opening singleflight.Group
}

func NewSessionManager(store ports.SessionStore, players ports.PlayerRepository, jobRows ports.JobStatusRepository, deps SessionDeps) *SessionManager {
	return &SessionManager{
		store:   store,
		players: players,
		jobRows: jobRows,
		deps:    deps.withDefaults(),
		NewRand: func() Random {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
		IdleTimeout: sessionIdleTimeout,
		sessions:    make(map[string]*managedSession),
	}
}

// Authenticate resolves a bearer token.
func (m *SessionManager) Authenticate(ctx context.Context, token string) (*domain.AuthSession, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	auth, err := m.store.GetSession(ctx, token)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	return auth, nil
}

// Open returns the running session for the token's player, starting one if needed.
func (m *SessionManager) Open(ctx context.Context, token string) (*Session, error) {
	auth, err := m.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.OpenFor(ctx, auth)
}

// OpenFor is Open for an already authenticated player. Concurrent first
// opens share a single load, so a session starts at most once.
func (m *SessionManager) OpenFor(ctx context.Context, auth *domain.AuthSession) (*Session, error) {
	if s, ok := m.Get(auth.UserID); ok {
		s.touch()
		return s, nil
	}

	v, err, _ := m.opening.Do(auth.UserID, func() (interface{}, error) {
		if s, ok := m.Get(auth.UserID); ok {
			return s, nil
		}
		s, err := m.load(ctx, auth)
		if err != nil {
			return nil, err
		}

		runCtx, cancel := context.WithCancel(context.Background())
		m.mu.Lock()
		m.sessions[auth.UserID] = &managedSession{session: s, cancel: cancel}
		count := len(m.sessions)
		m.mu.Unlock()

		go s.Run(runCtx)
		metrics.SetActiveSessions(count)
		logger.InfoContext(logger.WithUser(ctx, auth.UserID), "Session opened", "username", s.username, "admin", s.admin)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s := v.(*Session)
	s.touch()
	return s, nil
}

func (m *SessionManager) load(ctx context.Context, auth *domain.AuthSession) (*Session, error) {
	player, err := m.players.GetPlayer(ctx, auth.UserID)
	if errors.Is(err, ports.ErrNotFound) {
		player, err = m.players.CreatePlayer(ctx, auth.UserID, auth.Username)
		if errors.Is(err, ports.ErrAlreadyExists) {
			player, err = m.players.GetPlayer(ctx, auth.UserID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load player: %w", err)
	}

	var loadErrs []error
	admin, err := m.players.IsAdmin(ctx, auth.UserID)
	if err != nil {
		logger.Warn("Failed to check admin role", "user_id", auth.UserID, "error", err)
		loadErrs = append(loadErrs, fmt.Errorf("admin check: %w", err))
	}
	rows, err := m.jobRows.ListPlayerJobs(ctx, auth.UserID)
	if err != nil {
		logger.Error("Failed to list player jobs", "user_id", auth.UserID, "error", err)
		loadErrs = append(loadErrs, fmt.Errorf("contract history: %w", err))
	}

	s := newSession(m.deps, *player, rows, admin, m.NewRand())
	for _, e := range loadErrs {
		s.feed(domain.FeedError, "ERROR: failed to load "+e.Error())
	}
	s.start()
	return s, nil
}

func (m *SessionManager) Get(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	return ms.session, true
}

// Close stops a player's session. In-flight writes are left to finish.
func (m *SessionManager) Close(userID string) {
	m.mu.Lock()
	ms, ok := m.sessions[userID]
	delete(m.sessions, userID)
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return
	}
	ms.cancel()
	<-ms.session.Done()
	m.deps.Feed.Forget(userID)
	metrics.SetActiveSessions(count)
	logger.Info("Session closed", "user_id", userID)
}

func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.Close(id)
	}
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes sessions idle for longer than IdleTimeout and returns how many.
// A connected player counts as active.
func (m *SessionManager) Reap(now time.Time) int {
	m.mu.RLock()
	var idle []string
	for id, ms := range m.sessions {
		if m.Presence != nil && m.Presence.Connected(id) {
			ms.session.touch()
			continue
		}
		if ms.session.IdleFor(now) > m.IdleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.Close(id)
	}
	return len(idle)
}

// StartReaper reaps idle sessions until ctx ends.
func (m *SessionManager) StartReaper(ctx context.Context) {
	ticker := time.NewTicker(sessionReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			if n := m.Reap(m.deps.Clock.Now()); n > 0 {
				logger.Info("Reaped idle sessions", "count", n)
			}
		}
	}
}
