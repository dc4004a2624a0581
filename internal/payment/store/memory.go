package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"collecta/internal/payment/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
)

// MemoryStore is an in-memory implementation used in tests. It honors the
// same contract as PostgresStore: one live claim per (household, period),
// conditional transitions, and all-or-nothing group creation via a
// compensating delete of rows already written when a later period conflicts.
type MemoryStore struct {
	mu       sync.Mutex
	groups   map[id.PaymentGroupID]models.PaymentGroup
	payments map[id.PaymentID]models.Payment
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		groups:   make(map[id.PaymentGroupID]models.PaymentGroup),
		payments: make(map[id.PaymentID]models.Payment),
	}
}

func (s *MemoryStore) CreateGroupWithPayments(_ context.Context, group *models.PaymentGroup, payments []models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[group.ID]; exists {
		return sentinel.ErrConflict
	}
	s.groups[group.ID] = *group

	var (
		written     []id.PaymentID
		overwritten []models.Payment
	)
	undo := func() {
		for _, pid := range written {
			delete(s.payments, pid)
		}
		for _, prior := range overwritten {
			s.payments[prior.ID] = prior
		}
		delete(s.groups, group.ID)
	}

	for _, p := range payments {
		if _, ok := s.liveClaimLocked(p.HouseholdID, p.Period); ok {
			undo()
			return fmt.Errorf("period %s: %w", p.Period, sentinel.ErrConflict)
		}
		if rejected, ok := s.rejectedClaimLocked(p.HouseholdID, p.Period); ok {
			// Resubmission reuses the rejected row's identity. The prior row
			// is kept so a later conflict in the same batch restores it.
			overwritten = append(overwritten, rejected)
			rejected.GroupID = p.GroupID
			rejected.Amount = p.Amount
			rejected.Status = p.Status
			rejected.RejectionReason = ""
			rejected.UpdatedAt = p.UpdatedAt
			s.payments[rejected.ID] = rejected
			continue
		}
		s.payments[p.ID] = p
		written = append(written, p.ID)
	}
	return nil
}

func (s *MemoryStore) liveClaimLocked(householdID id.HouseholdID, period id.Period) (models.Payment, bool) {
	for _, p := range s.payments {
		if p.HouseholdID == householdID && p.Period == period && p.Status != models.GroupRejected {
			return p, true
		}
	}
	return models.Payment{}, false
}

func (s *MemoryStore) rejectedClaimLocked(householdID id.HouseholdID, period id.Period) (models.Payment, bool) {
	for _, p := range s.payments {
		if p.HouseholdID == householdID && p.Period == period && p.Status == models.GroupRejected {
			return p, true
		}
	}
	return models.Payment{}, false
}

func (s *MemoryStore) FindGroup(_ context.Context, groupID id.PaymentGroupID) (*models.PaymentGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &g, nil
}

func (s *MemoryStore) ListGroupPayments(_ context.Context, groupID id.PaymentGroupID) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Payment
	for _, p := range s.payments {
		if p.GroupID == groupID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (s *MemoryStore) ListHouseholdPayments(_ context.Context, householdID id.HouseholdID) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Payment
	for _, p := range s.payments {
		if p.HouseholdID == householdID && p.Status != models.GroupRejected {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Period.Before(out[i].Period) })
	return out, nil
}

func (s *MemoryStore) ClaimedPeriods(_ context.Context, householdID id.HouseholdID, periods []id.Period) ([]id.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []id.Period
	for _, period := range periods {
		if _, ok := s.liveClaimLocked(householdID, period); ok {
			claimed = append(claimed, period)
		}
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].Before(claimed[j]) })
	return claimed, nil
}

func (s *MemoryStore) TransitionGroup(_ context.Context, groupID id.PaymentGroupID, to models.GroupStatus, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !g.Status.CanTransitionTo(to) {
		return sentinel.ErrConflict
	}
	g.Status = to
	g.RejectionReason = reason
	g.UpdatedAt = now
	s.groups[groupID] = g

	for pid, p := range s.payments {
		if p.GroupID != groupID {
			continue
		}
		p.Status = to
		p.RejectionReason = reason
		p.UpdatedAt = now
		s.payments[pid] = p
	}
	return nil
}

func (s *MemoryStore) PaidTotal(_ context.Context, householdID id.HouseholdID, year int) (id.Cents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total id.Cents
	for _, p := range s.payments {
		if p.HouseholdID == householdID && p.Status == models.GroupPaid && p.Period.Year == year {
			total += p.Amount
		}
	}
	return total, nil
}
