package ordermanager

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"graviex/pkg/core"
	"graviex/pkg/exchange"
)

// OrderBuilder provides a fluent interface for constructing order requests.
// The first parse error is kept and reported by Build.
//
// Example:
//
//	req, err := ordermanager.NewOrderBuilder("giobtc").
//	    Buy().
//	    Limit().
//	    Price("0.0000075").
//	    Volume("1000").
//	    Build()
type OrderBuilder struct {
	req *exchange.OrderRequest
	err error
}

// NewOrderBuilder creates a builder for a limit buy on market.
func NewOrderBuilder(market string) *OrderBuilder {
	return &OrderBuilder{
		req: &exchange.OrderRequest{
			Market: market,
			Side:   core.SideBuy,
			Type:   core.TypeLimit,
		},
	}
}

// Side sets the order side.
func (b *OrderBuilder) Side(side core.OrderSide) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Side = side
	return b
}

func (b *OrderBuilder) Buy() *OrderBuilder {
	return b.Side(core.SideBuy)
}

func (b *OrderBuilder) Sell() *OrderBuilder {
	return b.Side(core.SideSell)
}

// Type sets the order type.
func (b *OrderBuilder) Type(orderType core.OrderType) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Type = orderType
	return b
}

func (b *OrderBuilder) Market() *OrderBuilder {
	return b.Type(core.TypeMarket)
}

func (b *OrderBuilder) Limit() *OrderBuilder {
	return b.Type(core.TypeLimit)
}

// Price sets the limit price from its decimal string.
func (b *OrderBuilder) Price(price string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	if _, _, err := b.req.Price.SetString(price); err != nil {
		b.err = fmt.Errorf("parse price: %w", err)
	}
	return b
}

func (b *OrderBuilder) PriceDecimal(price apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Price.Set(&price)
	return b
}

// Volume sets the amount in base units from its decimal string.
func (b *OrderBuilder) Volume(volume string) *OrderBuilder {
	if b.err != nil {
		return b
	}
	if _, _, err := b.req.Volume.SetString(volume); err != nil {
		b.err = fmt.Errorf("parse volume: %w", err)
	}
	return b
}

func (b *OrderBuilder) VolumeDecimal(volume apd.Decimal) *OrderBuilder {
	if b.err != nil {
		return b
	}
	b.req.Volume.Set(&volume)
	return b
}

// Build validates and returns the request.
func (b *OrderBuilder) Build() (*exchange.OrderRequest, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}
	return b.req, nil
}
