package orderbook

// DoneReason says why an order left the book.
type DoneReason string

const (
	Filled    DoneReason = "filled"
	Cancelled DoneReason = "cancelled"
)

// Event is a book mutation observed during Add or Remove. The matching
// loop returns events as an ordered slice; it never calls out while
// mutating. Dispatch to journal, feed and replies happens one layer up.
type Event interface {
	isEvent()
}

// Opened: the unmatched remainder of an incoming order was inserted and
// is now resting.
type Opened struct {
	Order *Order
}

// Matched: one fill between the incoming taker and the resting provider.
// Price is the provider's price (price improvement goes to the taker).
// TakerDone and ProviderDone record whether either side was exhausted by
// this fill; an exhausted provider is already out of the book when the
// event is observed, with no separate Done event emitted for it.
type Matched struct {
	Size     int64
	Price    int64
	Taker    *Order
	Provider *Order

	TakerDone    bool
	ProviderDone bool
}

// Done: the order left the book, fully filled (taker consumed on entry)
// or cancelled.
type Done struct {
	Order  *Order
	Reason DoneReason
}

func (Opened) isEvent()  {}
func (Matched) isEvent() {}
func (Done) isEvent()    {}
