package push

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collecta/internal/notification/models"
	id "collecta/pkg/domain"
)

func note(recipientID id.AccountID) models.Notification {
	return models.Notification{
		ID:          id.NewNotificationID(),
		RecipientID: recipientID,
		Title:       "title",
		Type:        models.TypeApprovalRequest,
		SourceKind:  models.SourceHousehold,
		CreatedAt:   time.Now(),
	}
}

func TestInboxInsertPrependsIfAbsent(t *testing.T) {
	recipient := id.NewAccountID()
	first := note(recipient)
	second := note(recipient)

	var inbox Inbox
	inbox.Insert(first)
	inbox.Insert(second)
	// Replayed frame: already present, feed unchanged.
	inbox.Insert(first)

	feed := inbox.Snapshot()
	require.Len(t, feed, 2)
	assert.Equal(t, second.ID, feed[0].ID, "newest frame sits on top")
	assert.Equal(t, first.ID, feed[1].ID)
}

func TestInboxUpdateReplacesById(t *testing.T) {
	recipient := id.NewAccountID()
	n := note(recipient)

	var inbox Inbox
	inbox.Insert(n)

	n.IsRead = true
	inbox.Update(n)

	feed := inbox.Snapshot()
	require.Len(t, feed, 1)
	assert.True(t, feed[0].IsRead)

	// Updates for unknown ids are dropped, not inserted.
	inbox.Update(note(recipient))
	assert.Len(t, inbox.Snapshot(), 1)
}

func TestManagerRoutesFramesToCallbacks(t *testing.T) {
	broker := NewMemoryBroker()
	manager := NewManager(broker, nil)
	recipient := id.NewAccountID()

	inserts := make(chan models.Notification, 4)
	updates := make(chan models.Notification, 4)
	handle, err := manager.Subscribe(context.Background(), recipient,
		func(n models.Notification) { inserts <- n },
		func(n models.Notification) { updates <- n },
	)
	require.NoError(t, err)
	defer handle.Cancel()

	created := note(recipient)
	require.NoError(t, broker.Publish(context.Background(), recipient, Message{Op: OpInsert, Notification: created}))

	read := created
	read.IsRead = true
	require.NoError(t, broker.Publish(context.Background(), recipient, Message{Op: OpUpdate, Notification: read}))

	select {
	case n := <-inserts:
		assert.Equal(t, created.ID, n.ID)
	case <-time.After(time.Second):
		t.Fatal("expected an insert callback")
	}
	select {
	case n := <-updates:
		assert.True(t, n.IsRead)
	case <-time.After(time.Second):
		t.Fatal("expected an update callback")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	broker := NewMemoryBroker()
	manager := NewManager(broker, nil)
	recipient := id.NewAccountID()

	inserts := make(chan models.Notification, 4)
	handle, err := manager.Subscribe(context.Background(), recipient,
		func(n models.Notification) { inserts <- n }, nil)
	require.NoError(t, err)

	handle.Cancel()
	// Cancel is idempotent.
	handle.Cancel()

	require.NoError(t, broker.Publish(context.Background(), recipient, Message{Op: OpInsert, Notification: note(recipient)}))
	select {
	case <-inserts:
		t.Fatal("delivery after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishWithoutSubscribersIsDropped(t *testing.T) {
	broker := NewMemoryBroker()
	err := broker.Publish(context.Background(), id.NewAccountID(), Message{Op: OpInsert})
	assert.NoError(t, err)
}
