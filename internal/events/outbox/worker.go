package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
)

// Worker drains unpublished outbox rows to Kafka. Delivery is at least once:
// a crash between produce and MarkPublished re-sends the row on restart.
type Worker struct {
	store    *PostgresStore
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
}

func NewWorker(store *PostgresStore, client *kgo.Client, topic string, logger *slog.Logger) *Worker {
	return &Worker{
		store:    store,
		client:   client,
		topic:    topic,
		logger:   logger,
		interval: defaultPollInterval,
	}
}

// EnsureTopic creates the event topic if the cluster does not have it yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	_, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil && err.Error() != "TOPIC_ALREADY_EXISTS" {
		// Existing topics are fine; kadm reports them as a per-topic error.
		details, derr := adm.ListTopics(ctx, topic)
		if derr == nil && details.Has(topic) {
			return nil
		}
		return err
	}
	return nil
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	entries, err := w.store.Unpublished(ctx, defaultBatchSize)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		record := &kgo.Record{
			Topic: w.topic,
			Key:   []byte(entry.Kind),
			Value: entry.Payload,
		}
		if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return err
		}
		if err := w.store.MarkPublished(ctx, entry.ID, time.Now()); err != nil {
			return err
		}
	}
	return nil
}
