package main

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/loyaltykit/admin/internal/app/ingest"
	"github.com/loyaltykit/admin/internal/platform/dbpool"
	"github.com/loyaltykit/admin/internal/platform/env"
	"github.com/loyaltykit/admin/internal/platform/logging"
	"github.com/loyaltykit/admin/internal/platform/natsutil"
)

func main() {
	ctx := context.Background()

	logger, err := logging.New(env.String("LOG_LEVEL", "info"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	natsURL := env.String("NATS_URL", env.DefaultNATSURL)
	pgURL := env.String("DATABASE_URL", env.DefaultDatabaseURL)

	pool, err := dbpool.New(ctx, pgURL)
	if err != nil {
		logger.Fatal("postgres pool init failed", zap.Error(err))
	}
	defer pool.Close()

	repository := ingest.NewEventRepository(pool)
	if err := waitForPostgres(ctx, logger, pool, repository, 30*time.Second); err != nil {
		logger.Fatal("postgres never became ready", zap.Error(err))
	}
	service := ingest.NewService(repository)

	client, err := natsutil.ConnectJetStreamWithRetry(natsURL, env.Duration("NATS_CONNECT_TIMEOUT", 20*time.Second))
	if err != nil {
		logger.Fatal("jetstream connect failed", zap.Error(err))
	}
	defer client.Close()

	sub, err := client.JS.QueueSubscribe("loyalty.event.>", "event-sink", func(msg *nats.Msg) {
		var eventSeq uint64
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			eventSeq = meta.Sequence.Stream
		}

		insertCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := service.Handle(insertCtx, msg.Data, eventSeq); err != nil {
			if errors.Is(err, ingest.ErrInvalidEventPayload) || errors.Is(err, ingest.ErrUnsupportedEventType) {
				logger.Warn("discarding event", zap.Error(err), zap.String("subject", msg.Subject))
				_ = msg.Term()
				return
			}
			logger.Error("event projection failed", zap.Error(err), zap.String("subject", msg.Subject))
			_ = msg.Nak()
			return
		}

		_ = msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		logger.Fatal("subscribe failed", zap.Error(err))
	}

	logger.Info("event sink listening", zap.String("subject", sub.Subject))

	// Keep alive
	select {}
}

func waitForPostgres(
	ctx context.Context,
	logger *zap.Logger,
	pool *pgxpool.Pool,
	repository *ingest.EventRepository,
	timeout time.Duration,
) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = pool.Ping(attemptCtx)
		if lastErr == nil {
			lastErr = repository.EnsureSchema(attemptCtx)
		}
		cancel()

		if lastErr == nil {
			return nil
		}
		logger.Info("waiting for postgres readiness", zap.Error(lastErr))
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}
