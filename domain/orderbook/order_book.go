package orderbook

import (
	"errors"
	"fmt"

	"github.com/google/btree"
)

var (
	// ErrNotFound: no resting order with that id.
	ErrNotFound = errors.New("not found")
	// ErrWrongOwner: the cancel came from a party that does not own the order.
	ErrWrongOwner = errors.New("invalid owner")
)

const btreeDegree = 16

// OrderBook holds all resting orders for one product, one price-sorted
// tree per side plus an id index for cancels. It is single-writer and
// deterministic: (state, request) -> (state', events), no I/O.
type OrderBook struct {
	bids *btree.BTreeG[*PriceLevel]
	asks *btree.BTreeG[*PriceLevel]
	byID map[string]*Order
}

func New() *OrderBook {
	less := func(a, b *PriceLevel) bool { return a.Price < b.Price }
	return &OrderBook{
		bids: btree.NewG(btreeDegree, less),
		asks: btree.NewG(btreeDegree, less),
		byID: make(map[string]*Order),
	}
}

func (b *OrderBook) tree(s Side) *btree.BTreeG[*PriceLevel] {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// Add runs the matching loop for an incoming order and rests the
// remainder, if any. Events come back in emission order: zero or more
// Matched, then either a Done (taker fully consumed, never inserted) or
// an Opened (remainder now resting).
//
// A malformed order (non-positive size) is the caller's precondition to
// enforce; Add assumes it holds.
func (b *OrderBook) Add(o *Order) []Event {
	var events []Event

	for b.matchOne(o, &events) {
	}

	if o.Size < 0 {
		// Matching can never overshoot; this is a logic defect, not a
		// domain error.
		panic(fmt.Sprintf("orderbook: order %s size %d < 0 after matching", o.ID, o.Size))
	}

	if o.Size == 0 {
		o.Done = true
		events = append(events, Done{Order: o, Reason: Filled})
		return events
	}

	b.insert(o)
	events = append(events, Opened{Order: o})
	return events
}

// matchOne matches the incoming order against the single best resting
// counterparty. It reports whether another iteration could match more.
func (b *OrderBook) matchOne(o *Order, events *[]Event) bool {
	var best *PriceLevel

	if o.Side == Bid {
		// Incoming bid matches the lowest ask, and only if it crosses.
		level, ok := b.asks.Min()
		if !ok {
			return false
		}
		if level.Price > o.Price {
			return false
		}
		best = level
	} else {
		level, ok := b.bids.Max()
		if !ok {
			return false
		}
		if level.Price < o.Price {
			return false
		}
		best = level
	}

	// FIFO: the earliest arrival at the best level is the provider.
	provider := best.Head()

	size := min(o.Size, provider.Size)
	o.Size -= size
	provider.Size -= size

	if provider.Size == 0 {
		provider.Done = true
	}
	if o.Size == 0 {
		o.Done = true
	}

	*events = append(*events, Matched{
		Size:         size,
		Price:        provider.Price,
		Taker:        o,
		Provider:     provider,
		TakerDone:    o.Done,
		ProviderDone: provider.Done,
	})

	// An exhausted provider leaves immediately; done-ness is carried on
	// the Matched event, no separate Done is emitted for it.
	if provider.Done {
		b.delete(provider)
	}

	return o.Size > 0
}

// Remove cancels a resting order. Only the owning party may cancel.
func (b *OrderBook) Remove(orderID, owner string) (Event, error) {
	o, ok := b.byID[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Owner != owner {
		return nil, ErrWrongOwner
	}

	b.delete(o)
	return Done{Order: o, Reason: Cancelled}, nil
}

// State scans both sides in price-then-arrival order: bids best (highest)
// first, asks best (lowest) first. Read-only.
func (b *OrderBook) State() (bids, asks []*Order) {
	b.bids.Descend(func(level *PriceLevel) bool {
		bids = append(bids, level.Orders...)
		return true
	})
	b.asks.Ascend(func(level *PriceLevel) bool {
		asks = append(asks, level.Orders...)
		return true
	})
	return bids, asks
}

// BestBid returns the highest bid price, or ok=false on an empty side.
func (b *OrderBook) BestBid() (int64, bool) {
	level, ok := b.bids.Max()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

// BestAsk returns the lowest ask price, or ok=false on an empty side.
func (b *OrderBook) BestAsk() (int64, bool) {
	level, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return level.Price, true
}

func (b *OrderBook) Len() int {
	return len(b.byID)
}

func (b *OrderBook) insert(o *Order) {
	tree := b.tree(o.Side)

	level, ok := tree.Get(&PriceLevel{Price: o.Price})
	if !ok {
		level = &PriceLevel{Price: o.Price}
		tree.ReplaceOrInsert(level)
	}

	level.Enqueue(o)
	b.byID[o.ID] = o
}

func (b *OrderBook) delete(o *Order) {
	delete(b.byID, o.ID)

	tree := b.tree(o.Side)
	level, ok := tree.Get(&PriceLevel{Price: o.Price})
	if !ok {
		return
	}

	level.Remove(o)
	if level.Empty() {
		tree.Delete(level)
	}
}
