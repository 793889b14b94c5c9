// Package service is the ONLY write entry point into the matching core.
// One Matcher owns one product's order book and journal; every request
// flows through a single mutation goroutine, journaled before any of its
// effects become visible. Coordination between domain (orderbook), infra
// (journal, sequence) and snapshot happens here and nowhere else.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchd/domain/orderbook"
	"matchd/feed"
	"matchd/infra/journal"
	"matchd/infra/sequence"
	"matchd/scale"
	"matchd/snapshot"
)

// State is the matcher lifecycle. Only Running accepts requests.
type State int32

const (
	Recovering State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Recovering:
		return "recovering"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrNotRunning: the matcher is not accepting requests (recovering or
// shutting down).
var ErrNotRunning = errors.New("matcher: not running")

// Matcher sequences all requests for one product through the journal and
// into the book, and translates the book's events into feed messages and
// per-owner replies.
type Matcher struct {
	product string
	sc      scale.Scale

	book  *orderbook.OrderBook
	jnl   *journal.Journal
	snaps *snapshot.Store
	seq   *sequence.Sequencer

	pub feed.Publisher
	rep feed.Replier
	log *zap.Logger

	// stateNum is the next state marker value; the snapshot written with
	// marker N is numbered N+1.
	stateNum int64
	ticker   *snapshot.Ticker

	// replaying suppresses publication during recovery; output_seq still
	// advances so post-recovery messages never reuse a seq that may have
	// been published before the crash.
	replaying bool

	state    atomic.Int32
	reqs     chan Request
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

func New(
	product string,
	sc scale.Scale,
	jnl *journal.Journal,
	snaps *snapshot.Store,
	pub feed.Publisher,
	rep feed.Replier,
	log *zap.Logger,
) *Matcher {
	m := &Matcher{
		product: product,
		sc:      sc,
		book:    orderbook.New(),
		jnl:     jnl,
		snaps:   snaps,
		seq:     sequence.New(0),
		pub:     pub,
		rep:     rep,
		log:     log,
		reqs:    make(chan Request, 128),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	m.state.Store(int32(Recovering))
	return m
}

// State reports the current lifecycle state.
func (m *Matcher) State() State {
	return State(m.state.Load())
}

// Book exposes the order book for read-only inspection in tests.
func (m *Matcher) Book() *orderbook.OrderBook {
	return m.book
}

// OutputSeq returns the last issued feed sequence.
func (m *Matcher) OutputSeq() uint64 {
	return m.seq.Current()
}

// Start writes the startup snapshot and begins accepting requests.
// Recover must have completed first.
func (m *Matcher) Start() error {
	if _, err := m.writeState(); err != nil {
		return err
	}
	m.state.Store(int32(Running))
	m.log.Info("matcher running",
		zap.String("product", m.product),
		zap.Int64("state_num", m.stateNum),
		zap.Uint64("output_seq", m.seq.Current()))
	return nil
}

// Submit hands a request to the mutation pipeline. It does not wait for
// the request to be processed; replies arrive through the Replier.
func (m *Matcher) Submit(ctx context.Context, req Request) error {
	if m.State() != Running {
		return ErrNotRunning
	}
	select {
	case m.reqs <- req:
		return nil
	case <-m.quit:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the single mutation loop. It returns nil on a clean Stop and an
// error only on a durability failure, which the owner must treat as
// fail-stop: the journal is the system of record, and continuing with
// state that cannot be reconstructed is worse than dying.
func (m *Matcher) Run() error {
	defer close(m.done)
	defer m.state.Store(int32(Stopped))

	for {
		select {
		case req := <-m.reqs:
			if err := m.dispatch(req); err != nil {
				return err
			}
		case <-m.quit:
			// Drain requests already accepted into the pipeline.
			for {
				select {
				case req := <-m.reqs:
					if err := m.dispatch(req); err != nil {
						return err
					}
				default:
					m.log.Info("matcher stopped", zap.String("product", m.product))
					return nil
				}
			}
		}
	}
}

// Stop quiesces: no new requests, in-flight ones drain, then Run returns.
func (m *Matcher) Stop() {
	m.state.CompareAndSwap(int32(Running), int32(Stopping))
	m.quitOnce.Do(func() { close(m.quit) })
	<-m.done
}

// dispatch journals the request, waits for durability, then applies it.
// The in-memory effects of a request must never become visible before
// its journal append completes; that ordering is what makes the journal
// a valid replay source.
func (m *Matcher) dispatch(req Request) error {
	switch r := req.(type) {
	case PlaceOrder:
		p := journal.OrderPayload{
			OrderID: r.OrderID,
			OwnerID: r.OwnerID,
			Side:    int(r.Side),
			Price:   r.Price,
			Size:    r.Size,
		}
		if err := m.append(journal.TypeOrder, p); err != nil {
			return err
		}
		m.applyOrder(p)

	case CancelOrder:
		p := journal.CancelPayload{OrderID: r.OrderID, OwnerID: r.OwnerID}
		if err := m.append(journal.TypeCancel, p); err != nil {
			return err
		}
		m.applyCancel(p)

	case StateQuery:
		snap, err := m.writeState()
		if err != nil {
			return err
		}
		m.reply(r.RequesterID, feed.TypeState, snap)

	default:
		// Unreachable with the closed request set; kept so a new kind
		// that misses a case fails loudly instead of silently.
		m.log.Warn("unhandled request kind", zap.Any("request", req))
	}
	return nil
}

func (m *Matcher) append(typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("matcher: encode %s payload: %w", typ, err)
	}
	rec := &journal.Record{Type: typ, Time: time.Now().UnixMilli(), Payload: data}
	if err := <-m.jnl.Append(rec); err != nil {
		return fmt.Errorf("matcher: journal %s: %w", typ, err)
	}
	return nil
}

// applyOrder runs an already-journaled order through the book. Shared
// verbatim between the live path and recovery replay.
func (m *Matcher) applyOrder(p journal.OrderPayload) {
	o := &orderbook.Order{
		ID:    p.OrderID,
		Owner: p.OwnerID,
		Side:  orderbook.Side(p.Side),
		Price: p.Price,
		Size:  p.Size,
	}

	// Informational, pre-book-mutation: the order is in the matcher's
	// hands. Sent before Add because a fully matched order never rests
	// and would otherwise surface fills before any status at all.
	status := m.orderStatus(feed.StatusReceived, o, "")
	m.publish(feed.TypeOrderStatus, status)
	m.reply(o.Owner, feed.TypeOrderStatus, status)

	for _, ev := range m.book.Add(o) {
		m.emit(ev)
	}
}

// applyCancel runs an already-journaled cancel. A reject replies to the
// requester only: it caused no mutation, gets no feed message and no
// output_seq, and on replay it re-fails identically.
func (m *Matcher) applyCancel(p journal.CancelPayload) {
	ev, err := m.book.Remove(p.OrderID, p.OwnerID)
	if err != nil {
		reason := feed.RejectNotFound
		if errors.Is(err, orderbook.ErrWrongOwner) {
			reason = feed.RejectInvalidOwner
		}
		m.reply(p.OwnerID, feed.TypeCancelReject, feed.CancelRejectPayload{
			OrderID:      p.OrderID,
			RejectReason: reason,
		})
		return
	}
	m.emit(ev)
}

// emit translates one domain event into outward messages.
func (m *Matcher) emit(ev orderbook.Event) {
	switch e := ev.(type) {
	case orderbook.Opened:
		m.publish(feed.TypeOrderStatus, m.orderStatus(feed.StatusOpen, e.Order, ""))

	case orderbook.Matched:
		price := m.sc.Price(e.Price).String()
		size := m.sc.Size(e.Size).String()

		m.ticker = &snapshot.Ticker{
			Price:     price,
			Size:      size,
			Timestamp: time.Now().UnixMilli(),
		}

		m.publish(feed.TypeMatch, feed.MatchPayload{
			ID:              uuid.NewString(),
			TakerID:         e.Taker.ID,
			ProviderID:      e.Provider.ID,
			TakerOwnerID:    e.Taker.Owner,
			ProviderOwnerID: e.Provider.Owner,
			Size:            size,
			Price:           price,
			ProviderSide:    int(e.Provider.Side),
		})

		m.reply(e.Taker.Owner, feed.TypeFill, feed.FillPayload{
			OrderID: e.Taker.ID, Size: size, Price: price, Liquidity: "taker",
		})
		m.reply(e.Provider.Owner, feed.TypeFill, feed.FillPayload{
			OrderID: e.Provider.ID, Size: size, Price: price, Liquidity: "provider",
		})

		// The provider leaves the book inside the matching loop with no
		// separate Done event; its done status is derived here.
		if e.ProviderDone {
			status := m.orderStatus(feed.StatusDone, e.Provider, string(orderbook.Filled))
			m.publish(feed.TypeOrderStatus, status)
			m.reply(e.Provider.Owner, feed.TypeOrderStatus, status)
		}

	case orderbook.Done:
		status := m.orderStatus(feed.StatusDone, e.Order, string(e.Reason))
		m.publish(feed.TypeOrderStatus, status)
		m.reply(e.Order.Owner, feed.TypeOrderStatus, status)
	}
}

func (m *Matcher) orderStatus(status string, o *orderbook.Order, reason string) feed.OrderStatusPayload {
	return feed.OrderStatusPayload{
		Status:  status,
		Side:    int(o.Side),
		OrderID: o.ID,
		OwnerID: o.Owner,
		Price:   m.sc.Price(o.Price).String(),
		// Remaining size: consumers of done statuses use it to release
		// the held balance.
		Size:   m.sc.Size(o.Size).String(),
		Reason: reason,
	}
}

// publish sends a feed message under the next output_seq. During replay
// the message is dropped but the seq is still consumed.
func (m *Matcher) publish(typ string, payload any) {
	seq := m.seq.Next()
	if m.replaying {
		return
	}
	err := m.pub.Publish(feed.Message{
		Type:      typ,
		Timestamp: time.Now().UnixMilli(),
		ProductID: m.product,
		Seq:       seq,
		Payload:   payload,
	})
	if err != nil {
		m.log.Warn("feed publish failed",
			zap.String("type", typ), zap.Uint64("seq", seq), zap.Error(err))
	}
}

// reply sends a per-owner message. No seq: replies are not feed traffic.
func (m *Matcher) reply(target, typ string, payload any) {
	if m.replaying {
		return
	}
	err := m.rep.Reply(feed.Message{
		Type:      typ,
		Timestamp: time.Now().UnixMilli(),
		ProductID: m.product,
		TargetID:  target,
		Payload:   payload,
	})
	if err != nil {
		m.log.Warn("reply failed",
			zap.String("type", typ), zap.String("target", target), zap.Error(err))
	}
}

// writeState journals the state marker, then captures and saves the
// snapshot it anchors. Marker N on disk means snapshot N+1 reflects the
// journal exactly up to that record.
func (m *Matcher) writeState() (*snapshot.Snapshot, error) {
	marker := m.stateNum
	if err := m.append(journal.TypeState, marker); err != nil {
		return nil, err
	}

	snap := snapshot.Capture(m.book, m.sc)
	snap.StateNum = marker + 1
	snap.OutputSeq = m.seq.Current() + 1
	snap.Ticker = m.ticker

	if err := m.snaps.Save(snap.StateNum, snap); err != nil {
		return nil, fmt.Errorf("matcher: save snapshot %d: %w", snap.StateNum, err)
	}
	m.stateNum = marker + 1

	m.log.Info("snapshot written",
		zap.String("product", m.product),
		zap.Int64("state_num", snap.StateNum),
		zap.Uint64("output_seq", snap.OutputSeq))
	return snap, nil
}
