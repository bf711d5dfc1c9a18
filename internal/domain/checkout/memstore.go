package checkout

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process SessionStore for single-instance
// deployments and tests.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]memEntry
	locked   map[string]struct{}
}

type memEntry struct {
	sess      Session
	expiresAt time.Time
}

var _ SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore. Sessions expire ttl after their
// last save; zero disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memEntry),
		locked:   make(map[string]struct{}),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	s := e.sess
	s.Lines = slices.Clone(s.Lines)
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memEntry{sess: *s}
	e.sess.Lines = slices.Clone(s.Lines)
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.sessions[s.ID] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Lock(_ context.Context, id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.locked[id]; ok {
		return nil, ErrSessionBusy
	}
	m.locked[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.locked, id)
			m.mu.Unlock()
		})
	}, nil
}
