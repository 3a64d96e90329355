package registry

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-memory registry store for demo/test use.
type MemoryStore struct {
	mu           sync.RWMutex
	blocked      map[string]bool
	destinations map[string]*Destination
}

// NewMemoryStore creates an in-memory registry store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocked:      make(map[string]bool),
		destinations: make(map[string]*Destination),
	}
}

func (s *MemoryStore) Block(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[strings.ToLower(addr)] = true
	return nil
}

func (s *MemoryStore) Unblock(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocked, strings.ToLower(addr))
	return nil
}

func (s *MemoryStore) IsBlocked(ctx context.Context, addr string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocked[strings.ToLower(addr)], nil
}

func (s *MemoryStore) PutDestination(ctx context.Context, dest *Destination) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *dest
	s.destinations[dest.ID] = &cp
	return nil
}

func (s *MemoryStore) GetDestination(ctx context.Context, id string) (*Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dest, ok := s.destinations[id]
	if !ok {
		return nil, ErrChainNotSupported
	}
	cp := *dest
	return &cp, nil
}

func (s *MemoryStore) ListDestinations(ctx context.Context) ([]*Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Destination, 0, len(s.destinations))
	for _, dest := range s.destinations {
		cp := *dest
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) AddVolume(ctx context.Context, id string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dest, ok := s.destinations[id]
	if !ok {
		return ErrChainNotSupported
	}
	dest.ConsumedVolume += amount
	return nil
}

func (s *MemoryStore) ResetVolume(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dest, ok := s.destinations[id]
	if !ok {
		return ErrChainNotSupported
	}
	dest.ConsumedVolume = 0
	return nil
}
