// Command server runs the contribution platform: HTTP API, push channel and
// the outbox worker, all under one lifecycle.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	crservice "collecta/internal/changerequest/service"
	crstore "collecta/internal/changerequest/store"
	"collecta/internal/events"
	"collecta/internal/events/outbox"
	"collecta/internal/notification/badge"
	"collecta/internal/notification/push"
	notifservice "collecta/internal/notification/service"
	notifstore "collecta/internal/notification/store"
	payservice "collecta/internal/payment/service"
	paystore "collecta/internal/payment/store"
	"collecta/internal/platform/config"
	"collecta/internal/platform/httpserver"
	"collecta/internal/platform/logger"
	"collecta/internal/platform/metrics"
	"collecta/internal/platform/postgres"
	platformredis "collecta/internal/platform/redis"
	"collecta/internal/platform/token"
	"collecta/internal/receipts"
	regservice "collecta/internal/registration/service"
	regstore "collecta/internal/registration/store"
	httptransport "collecta/internal/transport/http"
	"collecta/pkg/platform/tx"
)

func main() {
	log := logger.New(slog.LevelInfo)
	if err := run(log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := postgres.Open(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	txRunner := tx.NewRunner(db)

	outboxStore := outbox.NewPostgres(db)
	publisher := events.NewPublisher(outboxStore)

	notifOpts := []notifservice.Option{
		notifservice.WithLogger(log),
		notifservice.WithMetrics(m),
	}
	if redisClient != nil {
		notifOpts = append(notifOpts, notifservice.WithBroker(push.NewRedisBroker(redisClient.Client, log)))
	}
	notifSvc := notifservice.New(notifstore.NewPostgres(db), notifOpts...)

	regStore := regstore.NewPostgres(db)
	regSvc := regservice.New(regStore,
		regservice.WithNotifier(notifSvc),
		regservice.WithEvents(publisher),
		regservice.WithMetrics(m),
		regservice.WithLogger(log),
		regservice.WithStoreTx(txRunner),
	)
	paySvc := payservice.New(paystore.NewPostgres(db), regStore,
		payservice.WithNotifier(notifSvc),
		payservice.WithEvents(publisher),
		payservice.WithMetrics(m),
		payservice.WithLogger(log),
		payservice.WithStoreTx(txRunner),
	)
	crSvc := crservice.New(crstore.NewPostgres(db), regStore, regStore,
		crservice.WithNotifier(notifSvc),
		crservice.WithEvents(publisher),
		crservice.WithMetrics(m),
		crservice.WithLogger(log),
		crservice.WithStoreTx(txRunner),
	)

	tokens := token.NewManager(cfg.Auth.JWTSigningKey)
	router := httptransport.NewRouter(httptransport.Services{
		Registration:   regSvc,
		Payments:       paySvc,
		ChangeRequests: crSvc,
		Notifications:  notifSvc,
		Badges:         badge.NewClearer(notifSvc),
		Receipts:       receipts.NewMemory(),
	}, tokens, regStore, log)

	srv := httpserver.New(cfg.HTTP, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.AllowAutoTopicCreation(),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()

		if err := outbox.EnsureTopic(ctx, kafkaClient, cfg.Kafka.Topic); err != nil {
			log.Warn("failed to ensure event topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		worker := outbox.NewWorker(outboxStore, kafkaClient, cfg.Kafka.Topic, log)
		group.Go(func() error {
			log.Info("outbox worker started", "topic", cfg.Kafka.Topic)
			return worker.Run(ctx)
		})
	} else {
		log.Info("kafka brokers not configured, event publishing disabled")
	}

	return group.Wait()
}
