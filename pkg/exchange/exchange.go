package exchange

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"graviex/pkg/core"
)

// Exchange is the exchange-neutral view of a trading venue: market data,
// balances and order execution.
type Exchange interface {
	Name() string

	GetTicker(ctx context.Context, market string, opts ...Option) (*core.Ticker, error)
	GetTickers(ctx context.Context, opts ...Option) ([]core.Ticker, error)
	GetOrderBook(ctx context.Context, market string, opts ...Option) (*core.OrderBook, error)
	GetDepth(ctx context.Context, market string, opts ...Option) (*core.Depth, error)
	GetTrades(ctx context.Context, market string, opts ...Option) iter.Seq2[*core.Trade, error]

	GetBalance(ctx context.Context, opts ...Option) ([]core.Account, error)

	PlaceOrder(ctx context.Context, req *OrderRequest, opts ...Option) (*core.Order, error)
	CancelOrder(ctx context.Context, req *CancelRequest, opts ...Option) (*core.Order, error)
	GetOrder(ctx context.Context, req *OrderQuery, opts ...Option) (*core.Order, error)
	GetOpenOrders(ctx context.Context, market string, opts ...Option) ([]core.Order, error)
}

// OrderRequest contains the parameters required to place a new order.
type OrderRequest struct {
	Market string         `validate:"required"`
	Side   core.OrderSide `validate:"oneof=0 1"`
	Type   core.OrderType `validate:"oneof=0 1"`
	// Price is ignored for market orders.
	Price  apd.Decimal
	Volume apd.Decimal
}

// CancelRequest contains the parameters required to cancel an existing order.
type CancelRequest struct {
	OrderID string `validate:"required"`
}

// OrderQuery contains the parameters required to query order status.
type OrderQuery struct {
	OrderID string `validate:"required"`
}

var validate = validator.New()

// Validate checks the struct tags plus the decimal rules: volume must be
// positive and a limit order needs a positive price.
func (r *OrderRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Volume.Sign() <= 0 {
		return errors.New("volume must be positive")
	}
	if r.Type == core.TypeLimit && r.Price.Sign() <= 0 {
		return errors.New("limit order requires a positive price")
	}
	return nil
}

// Params renders the order as request parameters. Decimals are written in
// plain notation.
func (r *OrderRequest) Params() core.Params {
	p := core.Params{
		"market":   r.Market,
		"side":     r.Side.String(),
		"volume":   r.Volume.Text('f'),
		"ord_type": r.Type.String(),
	}
	if r.Type == core.TypeLimit {
		p["price"] = r.Price.Text('f')
	}
	return p
}

// IndexedParams renders the order as the i-th entry of a multi-order
// request: orders[i][side], orders[i][volume], ...
func (r *OrderRequest) IndexedParams(i int) core.Params {
	p := make(core.Params, 4)
	for k, v := range r.Params() {
		if k == "market" {
			continue
		}
		p[fmt.Sprintf("orders[%d][%s]", i, k)] = v
	}
	return p
}

// Validate checks that an order id is present.
func (r *CancelRequest) Validate() error {
	return validate.Struct(r)
}

// Validate checks that an order id is present.
func (q *OrderQuery) Validate() error {
	return validate.Struct(q)
}
