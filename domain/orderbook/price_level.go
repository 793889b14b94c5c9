package orderbook

// PriceLevel is a FIFO queue of resting orders at a single price.
// A level is never left empty inside the book: the side removes it the
// moment its last order goes away.
type PriceLevel struct {
	Price  int64
	Orders []*Order
}

func (p *PriceLevel) Enqueue(o *Order) {
	p.Orders = append(p.Orders, o)
}

// Head returns the earliest-arrived order, the next counterparty.
func (p *PriceLevel) Head() *Order {
	if len(p.Orders) == 0 {
		return nil
	}
	return p.Orders[0]
}

func (p *PriceLevel) PopHead() *Order {
	o := p.Head()
	if o == nil {
		return nil
	}
	p.Orders = p.Orders[1:]
	return o
}

// Remove deletes o from the level, preserving arrival order of the rest.
func (p *PriceLevel) Remove(o *Order) bool {
	for i, cur := range p.Orders {
		if cur == o {
			p.Orders = append(p.Orders[:i], p.Orders[i+1:]...)
			return true
		}
	}
	return false
}

func (p *PriceLevel) Empty() bool {
	return len(p.Orders) == 0
}
