package credential

import (
	"sync"

	"github.com/trezcool/masomo/portal/core/session"
)

// MemoryStore keeps the token in memory. Used for tests and embedding.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	// Fail makes every operation fail as if the storage was unavailable.
	Fail bool
}

var _ session.CredentialStore = (*MemoryStore)(nil)

func NewMemoryStore(token ...string) *MemoryStore {
	s := &MemoryStore{}
	if len(token) > 0 {
		s.token = token[0]
	}
	return s
}

func (s *MemoryStore) Save(token string) error {
	if token == "" {
		return session.ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}
	s.token = token
	return nil
}

func (s *MemoryStore) Load() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Fail || s.token == "" {
		return "", false
	}
	return s.token, true
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrUnavailable
	}
	s.token = ""
	return nil
}
