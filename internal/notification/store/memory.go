package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"collecta/internal/notification/models"
	id "collecta/pkg/domain"
	"collecta/pkg/platform/sentinel"
)

// MemoryStore is the in-memory twin of PostgresStore for unit tests.
type MemoryStore struct {
	mu    sync.Mutex
	notes map[id.NotificationID]*models.Notification
}

func NewMemory() *MemoryStore {
	return &MemoryStore{notes: make(map[id.NotificationID]*models.Notification)}
}

func (s *MemoryStore) CreateBatch(_ context.Context, notes []models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range notes {
		cp := n
		s.notes[n.ID] = &cp
	}
	return nil
}

func (s *MemoryStore) ListForRecipient(_ context.Context, recipientID id.AccountID, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notes {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, recipientID id.AccountID, notificationID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[notificationID]
	if !ok || n.RecipientID != recipientID {
		return sentinel.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, recipientID id.AccountID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped int
	for _, n := range s.notes {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			flipped++
		}
	}
	return flipped, nil
}

func (s *MemoryStore) MarkReadBySource(_ context.Context, recipientID id.AccountID, kind models.SourceKind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var flipped int
	for _, n := range s.notes {
		if n.RecipientID == recipientID && n.SourceKind == kind && !n.IsRead {
			n.IsRead = true
			flipped++
		}
	}
	return flipped, nil
}

func (s *MemoryStore) UnreadCounts(_ context.Context, recipientID id.AccountID) (models.PendingCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts models.PendingCounts
	for _, n := range s.notes {
		if n.RecipientID == recipientID && !n.IsRead && n.Type == models.TypeApprovalRequest {
			counts.Add(n.SourceKind)
		}
	}
	return counts, nil
}

func (s *MemoryStore) Find(_ context.Context, notificationID id.NotificationID) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[notificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned int
	for nid, n := range s.notes {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(s.notes, nid)
			pruned++
		}
	}
	return pruned, nil
}
