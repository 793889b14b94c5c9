// Package scale converts between the core's integer fixed-point units
// (price ticks, size lots) and the decimal representation used on every
// external surface: snapshots, feed messages, inbound requests. The core
// never does decimal arithmetic; money as floating point is a correctness
// hazard this boundary exists to contain.
package scale

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale fixes the tick and lot size for one product.
type Scale struct {
	PriceTick decimal.Decimal
	SizeLot   decimal.Decimal
}

// New parses tick and lot sizes, e.g. ("0.01", "0.00000001").
func New(priceTick, sizeLot string) (Scale, error) {
	tick, err := decimal.NewFromString(priceTick)
	if err != nil {
		return Scale{}, fmt.Errorf("scale: price tick %q: %w", priceTick, err)
	}
	lot, err := decimal.NewFromString(sizeLot)
	if err != nil {
		return Scale{}, fmt.Errorf("scale: size lot %q: %w", sizeLot, err)
	}
	if tick.Sign() <= 0 || lot.Sign() <= 0 {
		return Scale{}, fmt.Errorf("scale: tick and lot must be positive")
	}
	return Scale{PriceTick: tick, SizeLot: lot}, nil
}

// Price renders a tick count as its external decimal value.
func (s Scale) Price(ticks int64) decimal.Decimal {
	return decimal.NewFromInt(ticks).Mul(s.PriceTick)
}

// Size renders a lot count as its external decimal value.
func (s Scale) Size(lots int64) decimal.Decimal {
	return decimal.NewFromInt(lots).Mul(s.SizeLot)
}

// PriceTicks parses an external decimal price into ticks. A price that
// does not land on the tick grid is rejected.
func (s Scale) PriceTicks(price decimal.Decimal) (int64, error) {
	return toUnits(price, s.PriceTick, "price")
}

// SizeLots parses an external decimal size into lots.
func (s Scale) SizeLots(size decimal.Decimal) (int64, error) {
	return toUnits(size, s.SizeLot, "size")
}

func toUnits(v, unit decimal.Decimal, what string) (int64, error) {
	q := v.Div(unit)
	if !q.IsInteger() {
		return 0, fmt.Errorf("scale: %s %s is not a multiple of %s", what, v, unit)
	}
	return q.IntPart(), nil
}
