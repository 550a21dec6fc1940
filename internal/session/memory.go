// ABOUTME: In-memory session store backed by a mutex-guarded map
// ABOUTME: Default backend; history is lost on process restart

package session

import (
	"context"
	"sync"
)

// MemoryStore keeps transcripts in process memory. When limit is
// positive, each session retains at most that many trailing messages.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Message
	limit    int
	closed   bool
}

// NewMemoryStore creates an in-memory store. A non-positive limit
// disables trimming.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]Message),
		limit:    limit,
	}
}

func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	msgs := s.sessions[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	history := append(s.sessions[sessionID], msgs...)
	if s.limit > 0 && len(history) > s.limit {
		trimmed := make([]Message, s.limit)
		copy(trimmed, history[len(history)-s.limit:])
		history = trimmed
	}
	s.sessions[sessionID] = history
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = nil
	return nil
}
