// Package outbox is the durable staging area between the matcher and the
// public feed. Every feed message is written here synchronously, keyed by
// its output seq, before the broadcaster pushes it to Kafka; a crash
// between write and publish re-sends on restart instead of losing the
// message.
package outbox

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// Entry is one staged feed message.
type Entry struct {
	Seq     uint64
	State   State
	Payload []byte
}

// value encoding: [state:1][payload]
func encodeValue(state State, payload []byte) []byte {
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(state)
	copy(buf[1:], payload)
	return buf
}

func decodeValue(b []byte) (State, []byte, error) {
	if len(b) < 1 {
		return 0, nil, errors.New("outbox: empty value")
	}
	return State(b[0]), b[1:], nil
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put stages a new feed message under its seq. Synced before return.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	return o.db.Set(keyFor(seq), encodeValue(StateNew, payload), pebble.Sync)
}

// MarkSent flags the entry as handed to the producer (idempotent).
func (o *Outbox) MarkSent(seq uint64) error {
	return o.setState(seq, StateSent)
}

// MarkAcked flags the entry as acknowledged by the feed channel.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.setState(seq, StateAcked)
}

func (o *Outbox) setState(seq uint64, state State) error {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return err
	}
	_, payload, err := decodeValue(val)
	if err != nil {
		closer.Close()
		return err
	}
	next := encodeValue(state, payload)
	closer.Close()
	return o.db.Set(keyFor(seq), next, pebble.Sync)
}

// ScanPending iterates every non-ACKED entry in seq order.
func (o *Outbox) ScanPending(fn func(*Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("feed/"),
		UpperBound: []byte("feed/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		state, payload, err := decodeValue(iter.Value())
		if err != nil {
			return err
		}
		if state == StateAcked {
			continue
		}
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		entry := &Entry{Seq: seq, State: state, Payload: append([]byte(nil), payload...)}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return iter.Error()
}

// PruneAcked deletes every ACKED entry.
func (o *Outbox) PruneAcked() error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("feed/"),
		UpperBound: []byte("feed/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	var doomed [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		state, _, err := decodeValue(iter.Value())
		if err != nil {
			return err
		}
		if state == StateAcked {
			doomed = append(doomed, append([]byte(nil), iter.Key()...))
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	for _, key := range doomed {
		if err := o.db.Delete(key, pebble.NoSync); err != nil {
			return err
		}
	}
	return nil
}

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("feed/%020d", seq))
}

// keys sort lexically; seq is zero-padded decimal
func parseKey(b []byte) (uint64, error) {
	if len(b) <= len("feed/") {
		return 0, fmt.Errorf("outbox: bad key %q", b)
	}
	return strconv.ParseUint(string(b[len("feed/"):]), 10, 64)
}
