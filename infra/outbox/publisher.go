package outbox

import (
	"encoding/json"

	"matchd/feed"
)

// Publisher implements feed.Publisher by staging each message in the
// outbox under its seq. The matcher's publish call returns once the
// message is durable; actual fan-out is the broadcaster's job.
type Publisher struct {
	ob *Outbox
}

func NewPublisher(ob *Outbox) *Publisher {
	return &Publisher{ob: ob}
}

func (p *Publisher) Publish(msg feed.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.ob.Put(msg.Seq, data)
}
