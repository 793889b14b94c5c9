package kafka

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"matchd/feed"
)

// Replier delivers per-owner reply messages over a kafka topic keyed by
// target_id, so all replies to one owner land on one partition in order.
type Replier struct {
	producer *Producer
	timeout  time.Duration
	log      *zap.Logger
}

func NewReplier(producer *Producer, log *zap.Logger) *Replier {
	return &Replier{
		producer: producer,
		timeout:  5 * time.Second,
		log:      log,
	}
}

func (r *Replier) Reply(msg feed.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.producer.Send(ctx, []byte(msg.TargetID), data)
}

func (r *Replier) Close() error {
	return r.producer.Close()
}

var _ feed.Replier = (*Replier)(nil)
