package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"backfill/internal/config"
	"backfill/internal/infrastructure"
	"backfill/internal/reconcile"
)

// SessionStore keeps reconciliation sessions between requests
type SessionStore interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	Purge(ctx context.Context) int
	Len() int
}

// MemorySessionStore is an in-memory SessionStore with a sliding TTL.
// When full, creating a session evicts the least recently used one.
type MemorySessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	ttl         time.Duration
	maxSessions int
	options     reconcile.Options
	metrics     *infrastructure.BusinessMetrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewMemorySessionStore creates a store whose sessions run with opts
func NewMemorySessionStore(cfg config.SessionConfig, opts reconcile.Options, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *MemorySessionStore {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &MemorySessionStore{
		sessions:    make(map[string]*Session),
		ttl:         cfg.TTL,
		maxSessions: cfg.MaxSessions,
		options:     opts,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "session_store")),
		now:         time.Now,
	}
}

// Create starts a new empty session
func (s *MemorySessionStore) Create(ctx context.Context) (*Session, error) {
	now := s.now()
	session := NewSession(uuid.New().String(), s.options, s.ttl, now)

	s.mu.Lock()
	removed := s.purgeLocked(now)
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		if oldest := s.oldestLocked(); oldest != "" {
			delete(s.sessions, oldest)
			removed++
			s.logger.WarnContext(ctx, "session_evicted",
				slog.String("session_id", oldest),
				slog.Int("max_sessions", s.maxSessions))
		}
	}
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.trackActive(ctx, 1-removed)
	s.logger.InfoContext(ctx, "session_created", slog.String("session_id", session.ID))
	return session, nil
}

// Get returns a live session and extends its lifetime
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	now := s.now()

	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, sessionNotFound(id)
	}
	if session.Expired(now) {
		s.remove(ctx, id)
		return nil, sessionNotFound(id)
	}

	session.Touch(now)
	return session, nil
}

// Delete clears a session. Deleting an unknown session is an error.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	if !s.remove(ctx, id) {
		return sessionNotFound(id)
	}
	s.logger.InfoContext(ctx, "session_deleted", slog.String("session_id", id))
	return nil
}

// Purge drops expired sessions and returns how many were removed
func (s *MemorySessionStore) Purge(ctx context.Context) int {
	s.mu.Lock()
	removed := s.purgeLocked(s.now())
	s.mu.Unlock()

	if removed > 0 {
		s.trackActive(ctx, -removed)
		s.logger.InfoContext(ctx, "sessions_purged", slog.Int("count", removed))
	}
	return removed
}

// Len returns the number of stored sessions
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RunJanitor purges expired sessions every interval until ctx is done
func (s *MemorySessionStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Purge(ctx)
		}
	}
}

func (s *MemorySessionStore) remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.trackActive(ctx, -1)
	}
	return ok
}

func (s *MemorySessionStore) purgeLocked(now time.Time) int {
	removed := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *MemorySessionStore) oldestLocked() string {
	var (
		oldest   string
		oldestAt time.Time
	)
	for id, session := range s.sessions {
		if at := session.UpdatedAt(); oldest == "" || at.Before(oldestAt) {
			oldest, oldestAt = id, at
		}
	}
	return oldest
}

func (s *MemorySessionStore) trackActive(ctx context.Context, delta int) {
	if s.metrics == nil || delta == 0 {
		return
	}
	s.metrics.ActiveSessions.Add(ctx, int64(delta))
}
