package orderbook

type Side int

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Ask {
		return "ask"
	}
	return "bid"
}

// Order is a pure domain entity. Identity is immutable; Size is the
// remaining quantity and is decremented only by matching. Price and Size
// are integer fixed-point (ticks and lots); decimal conversion happens at
// the interface boundary, never here.
type Order struct {
	ID    string
	Owner string
	Side  Side
	Price int64
	Size  int64

	// Done is set once Size reaches zero through matching.
	Done bool
}

func (o *Order) Remaining() int64 {
	return o.Size
}
