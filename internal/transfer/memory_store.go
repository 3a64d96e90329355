package transfer

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory request ledger for demo/test use.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[uint64]*Request
	order    []uint64 // insertion order, oldest first
}

// NewMemoryStore creates an in-memory request store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[uint64]*Request)}
}

func (s *MemoryStore) Create(ctx context.Context, req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.requests[req.ID] = &cp
	s.order = append(s.order, req.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uint64) (*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, ErrInvalidRequest
	}
	cp := *req
	return &cp, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int, before uint64) ([]*Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	// Most recent first.
	out := make([]*Request, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		id := s.order[i]
		if before > 0 && id >= before {
			continue
		}
		cp := *s.requests[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) SetAssessment(ctx context.Context, id uint64, score uint64, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return ErrInvalidRequest
	}
	req.RiskScore = score
	req.Status = status
	return nil
}

func (s *MemoryStore) LastID(ctx context.Context) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return 0, false, nil
	}
	return s.order[len(s.order)-1], true, nil
}
