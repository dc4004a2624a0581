package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"collecta/internal/changerequest/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
)

// MemoryStore is the in-memory twin of PostgresStore for unit tests,
// including the one-pending-per-requester rule.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[id.ChangeRequestID]*models.ChangeRequest
}

func NewMemory() *MemoryStore {
	return &MemoryStore{requests: make(map[id.ChangeRequestID]*models.ChangeRequest)}
}

func (s *MemoryStore) Create(_ context.Context, cr *models.ChangeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[cr.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.requests {
		if existing.RequesterID == cr.RequesterID && existing.Status == models.StatusPending {
			return sentinel.ErrConflict
		}
	}
	cp := *cr
	s.requests[cr.ID] = &cp
	return nil
}

func (s *MemoryStore) Find(_ context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cr, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *cr
	return &cp, nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]models.ChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChangeRequest
	for _, cr := range s.requests {
		if cr.Status == models.StatusPending {
			out = append(out, *cr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Transition(_ context.Context, requestID id.ChangeRequestID, to models.Status, reason string, resolvedBy id.AccountID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cr, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !cr.Status.CanTransitionTo(to) {
		return sentinel.ErrConflict
	}
	cr.Status = to
	cr.RejectionReason = reason
	cr.ResolvedBy = resolvedBy
	cr.UpdatedAt = now
	return nil
}
