package graviex

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"

	"graviex/pkg/core"
)

// flexDecimal decodes a JSON string, number or null into a decimal.
// Graviex mixes all three for amounts.
type flexDecimal apd.Decimal

func (d *flexDecimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = flexDecimal{}
		return nil
	}
	var v apd.Decimal
	if _, _, err := v.SetString(s); err != nil {
		return fmt.Errorf("parse decimal %q: %w", s, err)
	}
	*d = flexDecimal(v)
	return nil
}

func (d flexDecimal) decimal() apd.Decimal {
	return apd.Decimal(d)
}

// flexID decodes an id sent either as a JSON number or string.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		s = ""
	}
	*id = flexID(s)
	return nil
}

// graviexMarketEnvelope is the response of /markets/{id}.json.
type graviexMarketEnvelope struct {
	Attributes graviexMarketAttributes `json:"attributes"`
}

type graviexMarketAttributes struct {
	ID        string            `json:"id"`
	Code      int               `json:"code"`
	Name      string            `json:"name"`
	BaseUnit  string            `json:"base_unit"`
	QuoteUnit string            `json:"quote_unit"`
	Bid       graviexMarketSide `json:"bid"`
	Ask       graviexMarketSide `json:"ask"`
	SortOrder int               `json:"sort_order"`
}

type graviexMarketSide struct {
	Fee      flexDecimal `json:"fee"`
	Currency string      `json:"currency"`
	Fixed    int         `json:"fixed"`
	Lot      flexDecimal `json:"lot"`
}

// graviexTicker is one entry of /tickers.json, also the body of /tickers/{id}.json.
type graviexTicker struct {
	Name       string      `json:"name"`
	BaseUnit   string      `json:"base_unit"`
	BaseFixed  int         `json:"base_fixed"`
	BaseFee    flexDecimal `json:"base_fee"`
	QuoteUnit  string      `json:"quote_unit"`
	QuoteFixed int         `json:"quote_fixed"`
	QuoteFee   flexDecimal `json:"quote_fee"`
	API        bool        `json:"api"`
	BaseMin    flexDecimal `json:"base_min"`
	QuoteMin   flexDecimal `json:"quote_min"`
	WStatus    string      `json:"wstatus"`
	Low        flexDecimal `json:"low"`
	High       flexDecimal `json:"high"`
	Last       flexDecimal `json:"last"`
	Open       flexDecimal `json:"open"`
	Volume     flexDecimal `json:"volume"`
	Volume2    flexDecimal `json:"volume2"`
	Sell       flexDecimal `json:"sell"`
	Buy        flexDecimal `json:"buy"`
	At         int64       `json:"at"`
}

// graviexDepth holds price levels as [price, volume] pairs.
type graviexDepth struct {
	Timestamp int64           `json:"timestamp"`
	Asks      [][]flexDecimal `json:"asks"`
	Bids      [][]flexDecimal `json:"bids"`
}

type graviexAccount struct {
	Currency string      `json:"currency"`
	Balance  flexDecimal `json:"balance"`
	Locked   flexDecimal `json:"locked"`
}

type graviexMember struct {
	SN        string  `json:"sn"`
	Name      *string `json:"name"`
	Email     string  `json:"email"`
	Activated bool    `json:"activated"`
	// Older deployments answer "accounts", current ones "accounts_filtered".
	Accounts         []graviexAccount `json:"accounts"`
	AccountsFiltered []graviexAccount `json:"accounts_filtered"`
}

type graviexTrade struct {
	ID        flexID      `json:"id"`
	OrderID   flexID      `json:"order_id"`
	Market    string      `json:"market"`
	Side      string      `json:"side"`
	Price     flexDecimal `json:"price"`
	Volume    flexDecimal `json:"volume"`
	Funds     flexDecimal `json:"funds"`
	CreatedAt string      `json:"created_at"`
}

type graviexOrder struct {
	ID              flexID         `json:"id"`
	Market          string         `json:"market"`
	Side            string         `json:"side"`
	OrdType         string         `json:"ord_type"`
	Price           flexDecimal    `json:"price"`
	AvgPrice        flexDecimal    `json:"avg_price"`
	State           string         `json:"state"`
	Volume          flexDecimal    `json:"volume"`
	RemainingVolume flexDecimal    `json:"remaining_volume"`
	ExecutedVolume  flexDecimal    `json:"executed_volume"`
	TradesCount     int            `json:"trades_count"`
	Trades          []graviexTrade `json:"trades"`
	CreatedAt       string         `json:"created_at"`
}

type graviexOrderBook struct {
	Asks []graviexOrder `json:"asks"`
	Bids []graviexOrder `json:"bids"`
}

// Normalizer converts Graviex wire structures to canonical core types.
type Normalizer struct{}

// NewNormalizer creates a new Normalizer instance.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) NormalizeMarketInfo(data *graviexMarketEnvelope) *core.MarketInfo {
	a := data.Attributes
	return &core.MarketInfo{
		ID:        a.ID,
		Code:      a.Code,
		Name:      a.Name,
		BaseUnit:  a.BaseUnit,
		QuoteUnit: a.QuoteUnit,
		Bid:       n.normalizeMarketSide(a.Bid),
		Ask:       n.normalizeMarketSide(a.Ask),
		SortOrder: a.SortOrder,
	}
}

func (n *Normalizer) normalizeMarketSide(s graviexMarketSide) core.MarketSide {
	return core.MarketSide{
		Fee:      s.Fee.decimal(),
		Currency: s.Currency,
		Fixed:    s.Fixed,
		Lot:      s.Lot.decimal(),
	}
}

// NormalizeTicker converts a ticker; market is the id the ticker was keyed by.
func (n *Normalizer) NormalizeTicker(market string, data *graviexTicker) *core.Ticker {
	return &core.Ticker{
		Market:      market,
		Name:        data.Name,
		BaseUnit:    data.BaseUnit,
		QuoteUnit:   data.QuoteUnit,
		BaseFixed:   data.BaseFixed,
		QuoteFixed:  data.QuoteFixed,
		BaseFee:     data.BaseFee.decimal(),
		QuoteFee:    data.QuoteFee.decimal(),
		BaseMin:     data.BaseMin.decimal(),
		QuoteMin:    data.QuoteMin.decimal(),
		API:         data.API,
		WalletOn:    data.WStatus == "on",
		Buy:         data.Buy.decimal(),
		Sell:        data.Sell.decimal(),
		Last:        data.Last.decimal(),
		Open:        data.Open.decimal(),
		High:        data.High.decimal(),
		Low:         data.Low.decimal(),
		Volume:      data.Volume.decimal(),
		QuoteVolume: data.Volume2.decimal(),
		Timestamp:   unixTime(data.At),
	}
}

// NormalizeTickers converts the ticker map into a slice sorted by market.
func (n *Normalizer) NormalizeTickers(data map[string]*graviexTicker) []core.Ticker {
	markets := make([]string, 0, len(data))
	for m := range data {
		markets = append(markets, m)
	}
	slices.Sort(markets)

	tickers := make([]core.Ticker, 0, len(markets))
	for _, m := range markets {
		if data[m] == nil {
			continue
		}
		tickers = append(tickers, *n.NormalizeTicker(m, data[m]))
	}
	return tickers
}

// NormalizeDepth converts price level pairs. A level with fewer than two
// elements is rejected.
func (n *Normalizer) NormalizeDepth(market string, data *graviexDepth) (*core.Depth, error) {
	asks, err := n.normalizeLevels(data.Asks)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	bids, err := n.normalizeLevels(data.Bids)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}
	return &core.Depth{
		Market:    market,
		Asks:      asks,
		Bids:      bids,
		Timestamp: unixTime(data.Timestamp),
	}, nil
}

func (n *Normalizer) normalizeLevels(levels [][]flexDecimal) ([]core.PriceLevel, error) {
	out := make([]core.PriceLevel, 0, len(levels))
	for i, l := range levels {
		if len(l) < 2 {
			return nil, fmt.Errorf("level %d: expected [price, volume], got %d elements", i, len(l))
		}
		out = append(out, core.PriceLevel{Price: l[0].decimal(), Volume: l[1].decimal()})
	}
	return out, nil
}

func (n *Normalizer) NormalizeMember(data *graviexMember) *core.Member {
	accounts := data.AccountsFiltered
	if len(accounts) == 0 {
		accounts = data.Accounts
	}

	m := &core.Member{
		SN:        data.SN,
		Email:     data.Email,
		Activated: data.Activated,
		Accounts:  make([]core.Account, 0, len(accounts)),
	}
	if data.Name != nil {
		m.Name = *data.Name
	}
	for _, a := range accounts {
		m.Accounts = append(m.Accounts, core.Account{
			Currency: a.Currency,
			Balance:  a.Balance.decimal(),
			Locked:   a.Locked.decimal(),
		})
	}
	return m
}

func (n *Normalizer) NormalizeOrder(data *graviexOrder) *core.Order {
	side, _ := core.ParseOrderSide(data.Side)
	state, _ := core.ParseOrderState(data.State)

	orderType := core.TypeLimit
	if data.OrdType == "market" {
		orderType = core.TypeMarket
	}

	o := &core.Order{
		ID:              string(data.ID),
		Market:          data.Market,
		Side:            side,
		Type:            orderType,
		Price:           data.Price.decimal(),
		AvgPrice:        data.AvgPrice.decimal(),
		State:           state,
		Volume:          data.Volume.decimal(),
		RemainingVolume: data.RemainingVolume.decimal(),
		ExecutedVolume:  data.ExecutedVolume.decimal(),
		TradesCount:     data.TradesCount,
		CreatedAt:       parseTime(data.CreatedAt),
	}
	if len(data.Trades) > 0 {
		o.Trades = n.NormalizeTrades(data.Trades)
	}
	return o
}

func (n *Normalizer) NormalizeOrders(data []graviexOrder) []core.Order {
	orders := make([]core.Order, 0, len(data))
	for i := range data {
		orders = append(orders, *n.NormalizeOrder(&data[i]))
	}
	return orders
}

func (n *Normalizer) NormalizeOrderBook(market string, data *graviexOrderBook) *core.OrderBook {
	return &core.OrderBook{
		Market: market,
		Asks:   n.NormalizeOrders(data.Asks),
		Bids:   n.NormalizeOrders(data.Bids),
	}
}

func (n *Normalizer) NormalizeTrade(data *graviexTrade) *core.Trade {
	side, _ := core.ParseOrderSide(data.Side)
	return &core.Trade{
		ID:        string(data.ID),
		OrderID:   string(data.OrderID),
		Market:    data.Market,
		Side:      side,
		Price:     data.Price.decimal(),
		Volume:    data.Volume.decimal(),
		Funds:     data.Funds.decimal(),
		CreatedAt: parseTime(data.CreatedAt),
	}
}

func (n *Normalizer) NormalizeTrades(data []graviexTrade) []core.Trade {
	trades := make([]core.Trade, 0, len(data))
	for i := range data {
		trades = append(trades, *n.NormalizeTrade(&data[i]))
	}
	return trades
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseTime accepts RFC 3339 and the space separated form some endpoints use.
// Unparseable input yields the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unixTime(sec)
	}
	return time.Time{}
}
