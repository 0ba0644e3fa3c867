package inmemory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/deepresearch/internal/research/core"
	"github.com/mohammad-safakhou/deepresearch/internal/session"
)

type Store struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewInMemorySessionStore() session.Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if id != "" {
		if sess, ok := store.sessions[id]; ok && !sess.expired() {
			sess.Expire(ttl)
			return sess, nil
		}
	}
	sess := &Session{
		id:        uuid.NewString(),
		expiresAt: time.Now().Add(ttl),
	}
	store.sessions[sess.id] = sess
	return sess, nil
}

func (store *Store) GetSession(id string) (session.Session, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	sess, ok := store.sessions[id]
	if !ok || sess.expired() {
		return nil, nil
	}
	return sess, nil
}

type Session struct {
	id        string
	expiresAt time.Time
	turns     []core.Turn
	mu        sync.RWMutex
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Expire(ttl time.Duration) { s.expiresAt = time.Now().Add(ttl) }

func (s *Session) expired() bool { return time.Now().After(s.expiresAt) }

func (s *Session) AppendTurn(turn core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return nil
}

func (s *Session) Turns() ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}
