package core

import (
	"time"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase the base unit.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell the base unit.
	SideSell
)

// String returns the wire representation of the order side ("buy" or "sell").
func (s OrderSide) String() string {
	return [...]string{"buy", "sell"}[s]
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
// It accepts both uppercase and lowercase formats, and the "bid"/"ask"
// aliases the API uses on trades.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	side, _ := ParseOrderSide(trimQuotes(string(data)))
	*s = side
	return nil
}

// ParseOrderSide converts a wire string into an OrderSide.
func ParseOrderSide(str string) (OrderSide, bool) {
	switch str {
	case "buy", "BUY", "bid":
		return SideBuy, true
	case "sell", "SELL", "ask":
		return SideSell, true
	}
	return SideBuy, false
}

// OrderType represents the type of order to place.
type OrderType int

// Order type constants define how an order is executed.
const (
	// TypeLimit executes at a specified price or better.
	TypeLimit OrderType = iota
	// TypeMarket executes immediately at the best available price.
	TypeMarket
)

// String returns the wire representation of the order type.
func (t OrderType) String() string {
	return [...]string{"limit", "market"}[t]
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	switch trimQuotes(string(data)) {
	case "market", "MARKET":
		*t = TypeMarket
	default:
		*t = TypeLimit
	}
	return nil
}

// OrderState represents the lifecycle state of an order.
type OrderState int

// Order state constants as reported by the exchange.
const (
	// StateWait indicates the order is open on the book.
	StateWait OrderState = iota
	// StateDone indicates the order has been completely filled.
	StateDone
	// StateCancel indicates the order has been canceled.
	StateCancel
)

// String returns the wire representation of the order state.
func (s OrderState) String() string {
	return [...]string{"wait", "done", "cancel"}[s]
}

// IsTerminal returns true if the order can no longer change.
func (s OrderState) IsTerminal() bool {
	return s == StateDone || s == StateCancel
}

// ParseOrderState converts a wire string into an OrderState.
func ParseOrderState(str string) (OrderState, bool) {
	switch str {
	case "wait":
		return StateWait, true
	case "done":
		return StateDone, true
	case "cancel":
		return StateCancel, true
	}
	return StateWait, false
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Market identifies a tradable pair.
type Market struct {
	// ID is the market identifier used in requests (e.g., "btcusd").
	ID string `json:"id"`
	// Name is the display name (e.g., "BTC/USD").
	Name string `json:"name"`
}

// MarketSide holds the fee and precision settings for one side of a market.
type MarketSide struct {
	Fee      apd.Decimal `json:"fee"`
	Currency string      `json:"currency"`
	Fixed    int         `json:"fixed"`
	Lot      apd.Decimal `json:"lot"`
}

// MarketInfo is the detailed description of a single market.
type MarketInfo struct {
	ID        string     `json:"id"`
	Code      int        `json:"code"`
	Name      string     `json:"name"`
	BaseUnit  string     `json:"base_unit"`
	QuoteUnit string     `json:"quote_unit"`
	Bid       MarketSide `json:"bid"`
	Ask       MarketSide `json:"ask"`
	SortOrder int        `json:"sort_order"`
}

// Ticker represents the 24-hour market summary for a trading pair.
type Ticker struct {
	// Market is the market identifier this ticker belongs to.
	Market string `json:"market"`
	// Name is the display name (e.g., "GIO/BTC").
	Name string `json:"name"`
	// BaseUnit and QuoteUnit are the currencies of the pair.
	BaseUnit  string `json:"base_unit"`
	QuoteUnit string `json:"quote_unit"`
	// BaseFixed and QuoteFixed are the decimal places the exchange honours.
	BaseFixed  int `json:"base_fixed"`
	QuoteFixed int `json:"quote_fixed"`
	// BaseFee and QuoteFee are fractional trading fees (0.002 = 0.2%).
	BaseFee  apd.Decimal `json:"base_fee"`
	QuoteFee apd.Decimal `json:"quote_fee"`
	// BaseMin and QuoteMin are the minimum amounts a valid trade must exceed.
	BaseMin  apd.Decimal `json:"base_min"`
	QuoteMin apd.Decimal `json:"quote_min"`
	// API reports whether the market is tradable over the API.
	API bool `json:"api"`
	// WalletOn reports whether the wallet status is "on".
	WalletOn bool `json:"wallet_on"`
	// Buy is the highest bid; Sell is the lowest ask.
	Buy  apd.Decimal `json:"buy"`
	Sell apd.Decimal `json:"sell"`
	// Last is the price of the most recent trade.
	Last apd.Decimal `json:"last"`
	// Open is the first price of the 24h window.
	Open apd.Decimal `json:"open"`
	// High and Low are the 24h extremes.
	High apd.Decimal `json:"high"`
	Low  apd.Decimal `json:"low"`
	// Volume is the 24h volume in base units; QuoteVolume in quote units.
	Volume      apd.Decimal `json:"volume"`
	QuoteVolume apd.Decimal `json:"quote_volume"`
	// Timestamp is when the exchange produced this ticker.
	Timestamp time.Time `json:"timestamp"`
}

// Account is the balance of one currency.
type Account struct {
	// Currency is the currency code (e.g., "btc").
	Currency string `json:"currency"`
	// Balance excludes locked funds.
	Balance apd.Decimal `json:"balance"`
	// Locked is held by open orders and pending withdrawals.
	Locked apd.Decimal `json:"locked"`
}

// Member is the authenticated user's profile and balances.
type Member struct {
	SN        string    `json:"sn"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Activated bool      `json:"activated"`
	Accounts  []Account `json:"accounts"`
}

// Order represents an exchange order.
// Volume always equals RemainingVolume plus ExecutedVolume.
type Order struct {
	ID              string      `json:"id"`
	Market          string      `json:"market"`
	Side            OrderSide   `json:"side"`
	Type            OrderType   `json:"ord_type"`
	Price           apd.Decimal `json:"price"`
	AvgPrice        apd.Decimal `json:"avg_price"`
	State           OrderState  `json:"state"`
	Volume          apd.Decimal `json:"volume"`
	RemainingVolume apd.Decimal `json:"remaining_volume"`
	ExecutedVolume  apd.Decimal `json:"executed_volume"`
	TradesCount     int         `json:"trades_count"`
	// Trades is only populated by endpoints that return order detail.
	Trades    []Trade   `json:"trades,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of o that shares no decimal storage with it.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := &Order{
		ID:          o.ID,
		Market:      o.Market,
		Side:        o.Side,
		Type:        o.Type,
		State:       o.State,
		TradesCount: o.TradesCount,
		CreatedAt:   o.CreatedAt,
	}
	c.Price.Set(&o.Price)
	c.AvgPrice.Set(&o.AvgPrice)
	c.Volume.Set(&o.Volume)
	c.RemainingVolume.Set(&o.RemainingVolume)
	c.ExecutedVolume.Set(&o.ExecutedVolume)
	if o.Trades != nil {
		c.Trades = make([]Trade, len(o.Trades))
		for i := range o.Trades {
			c.Trades[i] = o.Trades[i].Clone()
		}
	}
	return c
}

// Trade is a single execution.
type Trade struct {
	ID      string      `json:"id"`
	OrderID string      `json:"order_id,omitempty"`
	Market  string      `json:"market"`
	Side    OrderSide   `json:"side"`
	Price   apd.Decimal `json:"price"`
	Volume  apd.Decimal `json:"volume"`
	Funds   apd.Decimal `json:"funds"`
	// CreatedAt is when the trade was executed.
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of t.
func (t *Trade) Clone() Trade {
	c := Trade{
		ID:        t.ID,
		OrderID:   t.OrderID,
		Market:    t.Market,
		Side:      t.Side,
		CreatedAt: t.CreatedAt,
	}
	c.Price.Set(&t.Price)
	c.Volume.Set(&t.Volume)
	c.Funds.Set(&t.Funds)
	return c
}

// OrderBook lists the open orders on both sides of a market.
type OrderBook struct {
	Market string  `json:"market"`
	Asks   []Order `json:"asks"`
	Bids   []Order `json:"bids"`
}

// PriceLevel is one aggregated level of market depth.
type PriceLevel struct {
	Price  apd.Decimal `json:"price"`
	Volume apd.Decimal `json:"volume"`
}

// Depth is the aggregated market depth. Both sides are sorted high to low.
type Depth struct {
	Market    string       `json:"market"`
	Asks      []PriceLevel `json:"asks"`
	Bids      []PriceLevel `json:"bids"`
	Timestamp time.Time    `json:"timestamp"`
}
