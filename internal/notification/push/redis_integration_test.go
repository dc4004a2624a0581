//go:build integration

package push

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collecta/internal/notification/models"
	id "collecta/pkg/domain"
	"collecta/pkg/testutil/containers"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	broker := NewRedisBroker(rc.Client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	recipient := id.NewAccountID()
	msgs, cancel, err := broker.Subscribe(ctx, recipient)
	require.NoError(t, err)
	defer cancel()

	note := models.Notification{
		ID:          id.NewNotificationID(),
		RecipientID: recipient,
		Title:       "New household registration",
		Type:        models.TypeApprovalRequest,
		SourceKind:  models.SourceHousehold,
	}
	require.NoError(t, broker.Publish(ctx, recipient, Message{Op: OpInsert, Notification: note}))

	select {
	case got := <-msgs:
		assert.Equal(t, OpInsert, got.Op)
		assert.Equal(t, note.ID, got.Notification.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pushed frame")
	}

	// Frames for other recipients never cross channels.
	require.NoError(t, broker.Publish(ctx, id.NewAccountID(), Message{Op: OpInsert, Notification: note}))
	select {
	case got := <-msgs:
		t.Fatalf("unexpected frame delivered: %+v", got)
	case <-time.After(300 * time.Millisecond):
	}
}
