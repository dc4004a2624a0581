package push

import (
	"context"
	"log/slog"
	"sync"

	"collecta/internal/notification/models"
	id "collecta/pkg/domain"
)

// Handle is one live subscription. Cancel is idempotent and safe to call from
// any goroutine; the manager calls it on CancelAll (logout, shutdown).
type Handle struct {
	cancel func()
	once   sync.Once
}

func (h *Handle) Cancel() {
	h.once.Do(h.cancel)
}

// Manager owns the live subscriptions of a process and routes incoming push
// frames to the caller's insert/update callbacks.
type Manager struct {
	broker Broker
	logger *slog.Logger

	mu      sync.Mutex
	handles map[*Handle]struct{}
}

func NewManager(broker Broker, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		broker:  broker,
		logger:  logger,
		handles: make(map[*Handle]struct{}),
	}
}

// Subscribe opens a recipient channel and dispatches frames until the handle
// is cancelled. Callbacks run on the subscription goroutine, one at a time.
func (m *Manager) Subscribe(ctx context.Context, recipientID id.AccountID, onInsert, onUpdate func(models.Notification)) (*Handle, error) {
	msgs, cancel, err := m.broker.Subscribe(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	h := &Handle{}
	h.cancel = func() {
		cancel()
		m.mu.Lock()
		delete(m.handles, h)
		m.mu.Unlock()
	}
	m.mu.Lock()
	m.handles[h] = struct{}{}
	m.mu.Unlock()

	go func() {
		for msg := range msgs {
			switch msg.Op {
			case OpInsert:
				if onInsert != nil {
					onInsert(msg.Notification)
				}
			case OpUpdate:
				if onUpdate != nil {
					onUpdate(msg.Notification)
				}
			default:
				m.logger.Warn("dropping push frame with unknown op", "op", string(msg.Op))
			}
		}
	}()
	return h, nil
}

// CancelAll tears down every live subscription.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

// Inbox is the client-side feed fold: inserts prepend unless the id is
// already present, updates replace in place and are dropped when the entry
// is unknown. Push frames may arrive out of order or twice; both rules are
// idempotent under replay.
type Inbox struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (in *Inbox) Insert(n models.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, existing := range in.notes {
		if existing.ID == n.ID {
			return
		}
	}
	in.notes = append([]models.Notification{n}, in.notes...)
}

func (in *Inbox) Update(n models.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i, existing := range in.notes {
		if existing.ID == n.ID {
			in.notes[i] = n
			return
		}
	}
}

// Replace swaps the whole feed for an authoritative Refresh result.
func (in *Inbox) Replace(notes []models.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.notes = append([]models.Notification(nil), notes...)
}

// Snapshot returns a copy of the feed, newest first.
func (in *Inbox) Snapshot() []models.Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]models.Notification(nil), in.notes...)
}
