package session

import (
	"context"
	"sync"
	"time"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/server/models"
)

// MemoryStore is an in-memory sessions.Repository. Fragments held here do not
// survive a restart, which is acceptable for single-node deployments and
// tests; production wiring uses the Postgres repository.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*models.Session)}
}

func (s *MemoryStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.rows[session.Token] = &cp
	return nil
}

func (s *MemoryStore) Find(_ context.Context, token string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.rows[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *MemoryStore) Touch(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.rows[token]
	if !ok {
		return common.ErrorNotFound
	}
	session.LastActive = at
	return nil
}

func (s *MemoryStore) SetFragment(_ context.Context, token string, fragment []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.rows[token]
	if !ok {
		return common.ErrorNotFound
	}
	session.Fragment = fragment
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, token)
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, createdBefore, activeBefore time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.rows {
		if sess.Tier == common.TierConvenience {
			continue
		}
		if sess.CreatedAt.Before(createdBefore) || sess.LastActive.Before(activeBefore) {
			delete(s.rows, token)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.rows {
		if session.UserID == userID {
			delete(s.rows, token)
		}
	}
	return nil
}
