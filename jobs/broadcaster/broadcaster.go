// Package broadcaster drains the feed outbox into the public Kafka feed
// topic. Delivery is at-least-once: an entry is marked SENT before the
// produce and ACKED only after the broker confirms it, so a crash at any
// point re-sends rather than drops. Feed consumers dedupe on seq.
package broadcaster

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"matchd/infra/outbox"
)

type Broadcaster struct {
	ob       *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	log      *zap.Logger
}

func New(ob *outbox.Outbox, brokers []string, topic string, interval time.Duration, log *zap.Logger) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		ob:       ob,
		producer: producer,
		topic:    topic,
		interval: interval,
		log:      log,
	}, nil
}

// Run drains pending entries until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("broadcaster started", zap.String("topic", b.topic))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	pruneEvery := 0

	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcaster stopped")
			return
		case <-ticker.C:
			b.drainOnce()

			pruneEvery++
			if pruneEvery >= 40 {
				pruneEvery = 0
				if err := b.ob.PruneAcked(); err != nil {
					b.log.Warn("outbox prune failed", zap.Error(err))
				}
			}
		}
	}
}

func (b *Broadcaster) drainOnce() {
	err := b.ob.ScanPending(func(e *outbox.Entry) error {
		// SENT before produce: a crash between the two re-sends, which
		// is the failure mode we accept.
		if err := b.ob.MarkSent(e.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Value: sarama.ByteEncoder(e.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("feed produce failed, will retry",
				zap.Uint64("seq", e.Seq), zap.Error(err))
			return nil // leave as SENT, retried next drain
		}

		return b.ob.MarkAcked(e.Seq)
	})
	if err != nil {
		b.log.Warn("outbox scan failed", zap.Error(err))
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
