// Package snapshot serializes full book state to numbered files and
// locates the most recent one at startup. A snapshot plus the journal
// tail behind its state marker is sufficient to reconstruct the exact
// pre-crash state.
package snapshot

import (
	"fmt"

	"github.com/shopspring/decimal"

	"matchd/domain/orderbook"
	"matchd/scale"
)

// OrderState is one resting order in its externally-visible form:
// price and size as decimal strings, not internal ticks.
type OrderState struct {
	OrderID string `json:"order_id"`
	OwnerID string `json:"owner_id"`
	Side    int    `json:"side"`
	Price   string `json:"price"`
	Size    string `json:"size"`
}

// Ticker is the last trade, kept so a restart does not blank the feed's
// notion of last price.
type Ticker struct {
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp int64  `json:"timestamp"`
}

// Snapshot is the full serialized state of one product's matcher.
// StateNum is the snapshot's own number; OutputSeq is the next feed
// sequence to assign at capture time.
type Snapshot struct {
	Bids      []OrderState `json:"bids"`
	Asks      []OrderState `json:"asks"`
	StateNum  int64        `json:"state_num"`
	OutputSeq uint64       `json:"output_seq"`
	Ticker    *Ticker      `json:"ticker,omitempty"`
}

// Capture scans the book, best prices first, each level in arrival order.
// Read-only: counters are the caller's to report, not to advance.
func Capture(book *orderbook.OrderBook, sc scale.Scale) *Snapshot {
	bids, asks := book.State()
	return &Snapshot{
		Bids: orderStates(bids, sc),
		Asks: orderStates(asks, sc),
	}
}

// Restore rebuilds resting orders into an empty book. Orders re-enter in
// price-then-arrival order, so no order can cross and no matches fire.
func (s *Snapshot) Restore(book *orderbook.OrderBook, sc scale.Scale) error {
	for _, side := range [][]OrderState{s.Bids, s.Asks} {
		for _, os := range side {
			o, err := os.order(sc)
			if err != nil {
				return err
			}
			book.Add(o)
		}
	}
	return nil
}

func orderStates(orders []*orderbook.Order, sc scale.Scale) []OrderState {
	out := make([]OrderState, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderState{
			OrderID: o.ID,
			OwnerID: o.Owner,
			Side:    int(o.Side),
			Price:   sc.Price(o.Price).String(),
			Size:    sc.Size(o.Size).String(),
		})
	}
	return out
}

func (os OrderState) order(sc scale.Scale) (*orderbook.Order, error) {
	price, err := decimal.NewFromString(os.Price)
	if err != nil {
		return nil, fmt.Errorf("snapshot: order %s price: %w", os.OrderID, err)
	}
	size, err := decimal.NewFromString(os.Size)
	if err != nil {
		return nil, fmt.Errorf("snapshot: order %s size: %w", os.OrderID, err)
	}
	ticks, err := sc.PriceTicks(price)
	if err != nil {
		return nil, fmt.Errorf("snapshot: order %s: %w", os.OrderID, err)
	}
	lots, err := sc.SizeLots(size)
	if err != nil {
		return nil, fmt.Errorf("snapshot: order %s: %w", os.OrderID, err)
	}
	return &orderbook.Order{
		ID:    os.OrderID,
		Owner: os.OwnerID,
		Side:  orderbook.Side(os.Side),
		Price: ticks,
		Size:  lots,
	}, nil
}
