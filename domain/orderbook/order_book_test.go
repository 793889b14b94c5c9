package orderbook

import (
	"fmt"
	"testing"
)

func bid(id string, price, size int64) *Order {
	return &Order{ID: id, Owner: "owner-" + id, Side: Bid, Price: price, Size: size}
}

func ask(id string, price, size int64) *Order {
	return &Order{ID: id, Owner: "owner-" + id, Side: Ask, Price: price, Size: size}
}

func TestAddRestsWhenNoCross(t *testing.T) {
	b := New()

	events := b.Add(bid("b1", 100, 5))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if _, ok := events[0].(Opened); !ok {
		t.Fatalf("expected Opened, got %T", events[0])
	}

	events = b.Add(ask("a1", 101, 5))
	if _, ok := events[0].(Opened); !ok {
		t.Fatalf("expected Opened, got %T", events[0])
	}

	if b.Len() != 2 {
		t.Fatalf("expected 2 resting orders, got %d", b.Len())
	}
}

func TestFullMatchEmptiesBook(t *testing.T) {
	b := New()
	b.Add(bid("b1", 100, 5))

	events := b.Add(ask("a1", 100, 5))
	if len(events) != 2 {
		t.Fatalf("expected Matched+Done, got %d events", len(events))
	}

	m, ok := events[0].(Matched)
	if !ok {
		t.Fatalf("expected Matched, got %T", events[0])
	}
	if m.Size != 5 || m.Price != 100 {
		t.Fatalf("unexpected fill: size=%d price=%d", m.Size, m.Price)
	}
	if !m.TakerDone || !m.ProviderDone {
		t.Fatalf("both sides should be done: taker=%v provider=%v", m.TakerDone, m.ProviderDone)
	}

	d, ok := events[1].(Done)
	if !ok {
		t.Fatalf("expected Done, got %T", events[1])
	}
	if d.Reason != Filled || d.Order.ID != "a1" {
		t.Fatalf("unexpected done: %+v", d)
	}

	if b.Len() != 0 {
		t.Fatalf("book should be empty, has %d orders", b.Len())
	}
}

func TestExecutionAtProviderPrice(t *testing.T) {
	b := New()
	b.Add(ask("a1", 100, 5))

	// Taker bids above the resting ask; the fill happens at the
	// provider's price and the taker keeps the improvement.
	events := b.Add(bid("b1", 105, 5))
	m := events[0].(Matched)
	if m.Price != 100 {
		t.Fatalf("expected fill at resting price 100, got %d", m.Price)
	}
}

func TestPartialFillRestsRemainder(t *testing.T) {
	b := New()
	b.Add(ask("a1", 100, 3))

	events := b.Add(bid("b1", 100, 10))
	if len(events) != 2 {
		t.Fatalf("expected Matched+Opened, got %d events", len(events))
	}

	m := events[0].(Matched)
	if m.Size != 3 || m.TakerDone || !m.ProviderDone {
		t.Fatalf("unexpected fill: %+v", m)
	}

	op, ok := events[1].(Opened)
	if !ok {
		t.Fatalf("expected Opened, got %T", events[1])
	}
	if op.Order.Size != 7 {
		t.Fatalf("remainder should be 7, got %d", op.Order.Size)
	}

	best, ok := b.BestBid()
	if !ok || best != 100 {
		t.Fatalf("remainder should rest at 100, got %d ok=%v", best, ok)
	}
}

func TestTakerSweepsMultipleLevels(t *testing.T) {
	b := New()
	b.Add(ask("a1", 100, 2))
	b.Add(ask("a2", 101, 2))
	b.Add(ask("a3", 102, 2))

	events := b.Add(bid("b1", 101, 5))

	var fills []Matched
	for _, ev := range events {
		if m, ok := ev.(Matched); ok {
			fills = append(fills, m)
		}
	}
	if len(fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(fills))
	}
	if fills[0].Provider.ID != "a1" || fills[0].Price != 100 {
		t.Fatalf("first fill should hit a1@100: %+v", fills[0])
	}
	if fills[1].Provider.ID != "a2" || fills[1].Price != 101 {
		t.Fatalf("second fill should hit a2@101: %+v", fills[1])
	}

	// a3 at 102 does not cross; the taker's last lot rests at 101.
	op, ok := events[len(events)-1].(Opened)
	if !ok || op.Order.Size != 1 {
		t.Fatalf("expected 1-lot remainder to rest, got %+v", events[len(events)-1])
	}
}

func TestTimePriorityWithinLevel(t *testing.T) {
	b := New()
	b.Add(ask("first", 100, 1))
	b.Add(ask("second", 100, 1))
	b.Add(ask("third", 100, 1))

	events := b.Add(bid("b1", 100, 2))

	var providers []string
	for _, ev := range events {
		if m, ok := ev.(Matched); ok {
			providers = append(providers, m.Provider.ID)
		}
	}
	if len(providers) != 2 || providers[0] != "first" || providers[1] != "second" {
		t.Fatalf("fills must follow arrival order, got %v", providers)
	}

	bids, asks := b.State()
	if len(bids) != 0 || len(asks) != 1 || asks[0].ID != "third" {
		t.Fatalf("only third should remain, got bids=%v asks=%v", bids, asks)
	}
}

func TestCrossingInvariantAfterEveryAdd(t *testing.T) {
	b := New()
	orders := []*Order{
		bid("b1", 100, 5),
		ask("a1", 98, 2),
		bid("b2", 99, 3),
		ask("a2", 99, 10),
		bid("b3", 101, 4),
		ask("a3", 95, 20),
	}
	for _, o := range orders {
		b.Add(o)
		bb, okB := b.BestBid()
		ba, okA := b.BestAsk()
		if okB && okA && bb >= ba {
			t.Fatalf("book crossed after %s: best bid %d >= best ask %d", o.ID, bb, ba)
		}
	}
}

func TestRemoveAuthorization(t *testing.T) {
	b := New()
	b.Add(bid("b1", 100, 5))

	if _, err := b.Remove("b1", "someone-else"); err != ErrWrongOwner {
		t.Fatalf("expected ErrWrongOwner, got %v", err)
	}
	if b.Len() != 1 {
		t.Fatal("rejected cancel must not mutate the book")
	}

	if _, err := b.Remove("missing", "owner-b1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	ev, err := b.Remove("b1", "owner-b1")
	if err != nil {
		t.Fatalf("cancel by owner: %v", err)
	}
	d := ev.(Done)
	if d.Reason != Cancelled || d.Order.Size != 5 {
		t.Fatalf("unexpected done: %+v", d)
	}
	if b.Len() != 0 {
		t.Fatal("order should be gone")
	}
}

func TestRemoveFilledOrderNotFound(t *testing.T) {
	b := New()
	b.Add(ask("a1", 100, 5))
	b.Add(bid("b1", 100, 5))

	if _, err := b.Remove("a1", "owner-a1"); err != ErrNotFound {
		t.Fatalf("filled order must be unknown to cancel, got %v", err)
	}
}

func TestPartialFillThenCancelRemainder(t *testing.T) {
	b := New()
	b.Add(bid("b1", 100, 10))
	b.Add(ask("a1", 100, 4))

	ev, err := b.Remove("b1", "owner-b1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	d := ev.(Done)
	if d.Order.Size != 6 {
		t.Fatalf("cancelled remainder should be 6, got %d", d.Order.Size)
	}
}

func TestStateOrdering(t *testing.T) {
	b := New()
	b.Add(bid("b-low", 98, 1))
	b.Add(bid("b-high-1", 100, 1))
	b.Add(bid("b-high-2", 100, 1))
	b.Add(ask("a-high", 105, 1))
	b.Add(ask("a-low", 103, 1))

	bids, asks := b.State()

	wantBids := []string{"b-high-1", "b-high-2", "b-low"}
	for i, id := range wantBids {
		if bids[i].ID != id {
			t.Fatalf("bids[%d] = %s, want %s", i, bids[i].ID, id)
		}
	}
	wantAsks := []string{"a-low", "a-high"}
	for i, id := range wantAsks {
		if asks[i].ID != id {
			t.Fatalf("asks[%d] = %s, want %s", i, asks[i].ID, id)
		}
	}
}

func TestDeterministicReplay(t *testing.T) {
	build := func() *OrderBook {
		b := New()
		for i := 0; i < 50; i++ {
			if i%2 == 0 {
				b.Add(bid(fmt.Sprintf("b%d", i), int64(95+i%10), int64(1+i%5)))
			} else {
				b.Add(ask(fmt.Sprintf("a%d", i), int64(100+i%10), int64(1+i%3)))
			}
			if i%7 == 0 && i > 0 {
				b.Remove(fmt.Sprintf("b%d", i-1), fmt.Sprintf("owner-b%d", i-1))
			}
		}
		return b
	}

	b1, b2 := build(), build()

	bids1, asks1 := b1.State()
	bids2, asks2 := b2.State()
	if len(bids1) != len(bids2) || len(asks1) != len(asks2) {
		t.Fatalf("replay diverged: %d/%d vs %d/%d", len(bids1), len(asks1), len(bids2), len(asks2))
	}
	for i := range bids1 {
		if bids1[i].ID != bids2[i].ID || bids1[i].Size != bids2[i].Size {
			t.Fatalf("bid %d diverged: %+v vs %+v", i, bids1[i], bids2[i])
		}
	}
	for i := range asks1 {
		if asks1[i].ID != asks2[i].ID || asks1[i].Size != asks2[i].Size {
			t.Fatalf("ask %d diverged: %+v vs %+v", i, asks1[i], asks2[i])
		}
	}
}
