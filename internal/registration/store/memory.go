package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"collecta/internal/registration/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
)

// MemoryStore is the in-memory twin of PostgresStore for unit tests. It
// honours the same conditional-transition contract: a transition that finds
// the entity outside 'pending' returns sentinel.ErrConflict.
type MemoryStore struct {
	mu         sync.Mutex
	accounts   map[id.AccountID]*models.Account
	profiles   map[id.AccountID]*models.AdminProfile
	units      map[id.UnitID]*models.Unit
	households map[id.HouseholdID]*models.Household
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[id.AccountID]*models.Account),
		profiles:   make(map[id.AccountID]*models.AdminProfile),
		units:      make(map[id.UnitID]*models.Unit),
		households: make(map[id.HouseholdID]*models.Household),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, account *models.Account, profile *models.AdminProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *account
	s.accounts[account.ID] = &cp
	if profile != nil {
		pcp := *profile
		s.profiles[profile.AccountID] = &pcp
	}
	return nil
}

func (s *MemoryStore) FindAccount(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// FindAdminProfile exposes the role-specific row so tests can assert both
// halves of an activation moved together.
func (s *MemoryStore) FindAdminProfile(_ context.Context, accountID id.AccountID) (*models.AdminProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ActivateAccount(_ context.Context, accountID id.AccountID, role id.Role, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if a.Status != models.StatusPending {
		return sentinel.ErrConflict
	}
	if role == id.RoleRegionAdmin || role == id.RoleUnitAdmin {
		p, ok := s.profiles[accountID]
		if !ok || p.Status != models.StatusPending {
			return fmt.Errorf("admin profile missing for account %s: %w", accountID, sentinel.ErrInvalidState)
		}
		p.Status = models.StatusActive
		p.UpdatedAt = now
	}
	a.Status = models.StatusActive
	a.UpdatedAt = now
	return nil
}

func (s *MemoryStore) RejectAccount(_ context.Context, accountID id.AccountID, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if a.Status != models.StatusPending {
		return sentinel.ErrConflict
	}
	a.Status = models.StatusRejected
	a.RejectionReason = reason
	a.UpdatedAt = now
	return nil
}

func (s *MemoryStore) CreateUnit(_ context.Context, unit *models.Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[unit.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *unit
	s.units[unit.ID] = &cp
	return nil
}

func (s *MemoryStore) FindUnit(_ context.Context, unitID id.UnitID) (*models.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) ActivateUnit(_ context.Context, unitID id.UnitID, now time.Time) error {
	return s.transitionUnit(unitID, models.StatusActive, "", now)
}

func (s *MemoryStore) RejectUnit(_ context.Context, unitID id.UnitID, reason string, now time.Time) error {
	return s.transitionUnit(unitID, models.StatusRejected, reason, now)
}

func (s *MemoryStore) transitionUnit(unitID id.UnitID, status models.Status, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if u.Status != models.StatusPending {
		return sentinel.ErrConflict
	}
	u.Status = status
	u.RejectionReason = reason
	u.UpdatedAt = now
	return nil
}

func (s *MemoryStore) CreateHousehold(_ context.Context, h *models.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.households[h.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *h
	s.households[h.ID] = &cp
	return nil
}

func (s *MemoryStore) FindHousehold(_ context.Context, householdID id.HouseholdID) (*models.Household, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.households[householdID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (s *MemoryStore) ActivateHousehold(_ context.Context, householdID id.HouseholdID, now time.Time) error {
	return s.transitionHousehold(householdID, models.StatusActive, "", now)
}

func (s *MemoryStore) RejectHousehold(_ context.Context, householdID id.HouseholdID, reason string, now time.Time) error {
	return s.transitionHousehold(householdID, models.StatusRejected, reason, now)
}

func (s *MemoryStore) transitionHousehold(householdID id.HouseholdID, status models.Status, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.households[householdID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if h.Status != models.StatusPending {
		return sentinel.ErrConflict
	}
	h.Status = status
	h.RejectionReason = reason
	h.UpdatedAt = now
	return nil
}

func (s *MemoryStore) UpdateAdminScope(_ context.Context, accountID id.AccountID, city string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p, ok := s.profiles[accountID]
	if !ok {
		return fmt.Errorf("admin profile missing for account %s: %w", accountID, sentinel.ErrInvalidState)
	}
	a.City = city
	a.UpdatedAt = now
	p.City = city
	p.UpdatedAt = now
	return nil
}

func (s *MemoryStore) ReassignUnits(_ context.Context, adminID id.AccountID, city string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var moved int
	for _, u := range s.units {
		if u.AdminID == adminID {
			u.City = city
			u.UpdatedAt = now
			moved++
		}
	}
	return moved, nil
}

func (s *MemoryStore) UnitAdmin(_ context.Context, unitID id.UnitID) (id.AccountID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[unitID]
	if !ok {
		return id.AccountID{}, sentinel.ErrNotFound
	}
	return u.AdminID, nil
}

func (s *MemoryStore) RegionAdmins(_ context.Context, city string) ([]id.AccountID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []id.AccountID
	for _, a := range s.accounts {
		if a.Role == id.RoleRegionAdmin && a.City == city && a.Status == models.StatusActive {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) GlobalAdmins(_ context.Context) ([]id.AccountID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []id.AccountID
	for _, a := range s.accounts {
		if a.Role == id.RoleGlobalAdmin && a.Status == models.StatusActive {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}
