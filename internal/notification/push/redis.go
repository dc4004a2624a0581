package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	id "collecta/pkg/domain"
)

// RedisBroker publishes push frames over Redis pub/sub, one channel per
// recipient. Messages to recipients without an open subscription are dropped
// by Redis, which is the semantics push wants.
type RedisBroker struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisBroker(client *redis.Client, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, recipientID id.AccountID, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}
	if err := b.client.Publish(ctx, channelName(recipientID), payload).Err(); err != nil {
		return fmt.Errorf("publish push message: %w", err)
	}
	return nil
}

// Subscribe opens a recipient channel. The returned cancel func tears the
// subscription down; the message channel closes after cancel.
func (b *RedisBroker) Subscribe(ctx context.Context, recipientID id.AccountID) (<-chan Message, func(), error) {
	sub := b.client.Subscribe(ctx, channelName(recipientID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("subscribe push channel: %w", err)
	}

	out := make(chan Message, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		src := sub.Channel()
		for {
			select {
			case <-done:
				return
			case raw, ok := <-src:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.logger.Warn("dropping malformed push frame", "channel", raw.Channel, "error", err)
					continue
				}
				select {
				case out <- msg:
				case <-done:
					return
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		sub.Close()
	}
	return out, cancel, nil
}
