// Package push delivers notifications to connected clients over per-recipient
// pub/sub channels. Delivery is a best-effort hint: at least once, unordered,
// and clients reconcile through the dispatcher's Refresh when in doubt.
package push

import (
	"context"

	"collecta/internal/notification/models"
	id "collecta/pkg/domain"
)

// Op tells the subscriber how to fold the notification into its feed.
type Op string

const (
	// OpInsert prepends the notification if the feed does not hold its id.
	OpInsert Op = "insert"
	// OpUpdate replaces the feed entry with the same id, and is dropped when
	// no such entry exists.
	OpUpdate Op = "update"
)

// Message is one push frame on a recipient channel.
type Message struct {
	Op           Op                  `json:"op"`
	Notification models.Notification `json:"notification"`
}

// Broker fans messages out to per-recipient channels. Publish must never
// block a request path on slow subscribers.
type Broker interface {
	Publish(ctx context.Context, recipientID id.AccountID, msg Message) error
	Subscribe(ctx context.Context, recipientID id.AccountID) (<-chan Message, func(), error)
}

func channelName(recipientID id.AccountID) string {
	return "notify:" + recipientID.String()
}
