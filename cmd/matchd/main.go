package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"matchd/config"
	"matchd/infra/journal"
	"matchd/infra/kafka"
	"matchd/infra/outbox"
	"matchd/jobs/broadcaster"
	"matchd/scale"
	"matchd/service"
	"matchd/snapshot"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("matchd exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sc, err := scale.New(cfg.PriceTick, cfg.SizeLot)
	if err != nil {
		return err
	}

	jnl, err := journal.Open(cfg.JournalDir, cfg.ProductID)
	if err != nil {
		return err
	}
	defer jnl.Close()

	snaps, err := snapshot.NewStore(cfg.SnapshotDir, cfg.ProductID)
	if err != nil {
		return err
	}

	ob, err := outbox.Open(cfg.OutboxDir)
	if err != nil {
		return err
	}
	defer ob.Close()

	replier := kafka.NewReplier(kafka.NewProducer(cfg.KafkaBrokers, cfg.ReplyTopic), log)
	defer replier.Close()

	m := service.New(cfg.ProductID, sc, jnl, snaps, outbox.NewPublisher(ob), replier, log)

	if err := m.Recover(); err != nil {
		return err
	}
	if err := m.Start(); err != nil {
		return err
	}

	bc, err := broadcaster.New(ob, cfg.KafkaBrokers, cfg.FeedTopic, cfg.BroadcastInterval, log)
	if err != nil {
		return err
	}
	defer bc.Close()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.OrderTopic, cfg.GroupID, sc, m, log)
	defer consumer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fatal := make(chan error, 2)

	go func() {
		// A non-nil error here means the journal can no longer be trusted.
		if err := m.Run(); err != nil {
			fatal <- err
		}
	}()
	go bc.Run(ctx)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			fatal <- err
		}
	}()

	log.Info("matchd started",
		zap.String("product", cfg.ProductID),
		zap.Strings("brokers", cfg.KafkaBrokers))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-fatal:
		log.Error("fatal error, shutting down", zap.Error(err))
		m.Stop()
		return err
	}

	// Stop intake first, then drain the mutation pipeline.
	cancel()
	m.Stop()
	return nil
}
