// Package registry holds the authoritative, host-owned set of active game
// sessions, keyed by session id with a PIN lookup for joins.
package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/Goosie/NostrQuizAndVote/internal/domain/model"
)

// pinAttempts bounds the retries against PIN collisions.
const pinAttempts = 32

// Store provides read/write access to active sessions.
type Store interface {
	// Put registers a session. Fails with ErrDuplicateSession if the id is
	// taken, ErrDuplicatePIN if the PIN collides with an active session.
	Put(ctx context.Context, sess *model.GameSession) error

	// Get returns the session for an id, or ErrSessionNotFound.
	Get(ctx context.Context, id string) (*model.GameSession, error)

	// GetByPIN returns the active session a join code maps to.
	GetByPIN(ctx context.Context, pin string) (*model.GameSession, error)

	// Delete removes a session. Idempotent.
	Delete(ctx context.Context, id string)

	// NewPIN generates a 6-digit join code unique among active sessions.
	NewPIN(ctx context.Context) (string, error)

	// Count returns the number of registered sessions.
	Count(ctx context.Context) int

	// IDs returns the registered session ids.
	IDs(ctx context.Context) []string
}

// memoryStore is the in-memory Store used by the host process. Sessions are
// mutated only by their dispatch goroutine; the store itself just guards the
// maps.
type memoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*model.GameSession
	byPIN  map[string]string
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() Store {
	return &memoryStore{
		byID:  make(map[string]*model.GameSession),
		byPIN: make(map[string]string),
	}
}

func (s *memoryStore) Put(_ context.Context, sess *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[sess.ID]; exists {
		return ErrDuplicateSession
	}
	if _, exists := s.byPIN[sess.PIN]; exists {
		return ErrDuplicatePIN
	}
	s.byID[sess.ID] = sess
	s.byPIN[sess.PIN] = sess.ID
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *memoryStore) GetByPIN(_ context.Context, pin string) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPIN[pin]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.byID[id], nil
}

func (s *memoryStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byPIN, sess.PIN)
}

func (s *memoryStore) NewPIN(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 0; i < pinAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(900000))
		if err != nil {
			return "", err
		}
		pin := fmt.Sprintf("%06d", n.Int64()+100000)
		if _, taken := s.byPIN[pin]; !taken {
			return pin, nil
		}
	}
	return "", ErrPINExhausted
}

func (s *memoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *memoryStore) IDs(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	return ids
}
