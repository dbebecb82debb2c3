package graviex

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"graviex/pkg/core"
	"graviex/pkg/exchange"
)

// KlinePeriods lists the candle widths in minutes the exchange accepts.
var KlinePeriods = []int{1, 5, 15, 30, 60, 120, 240, 360, 720, 1440, 4320, 10080}

var validate = mustValidator()

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	err := v.RegisterValidation("kline_period", func(fl validator.FieldLevel) bool {
		p := int(fl.Field().Int())
		return p == 0 || slices.Contains(KlinePeriods, p)
	})
	if err != nil {
		return nil, fmt.Errorf("register kline_period: %w", err)
	}
	return v, nil
}

func mustValidator() *validator.Validate {
	v, err := newValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// DepthRequest queries aggregated depth. Both sides are sorted high to low.
type DepthRequest struct {
	Market string `validate:"required"`
	Limit  int    `validate:"min=0"`
	Order  string `validate:"omitempty,oneof=asc des"`
}

func (r *DepthRequest) params() core.Params {
	p := core.Params{"market": r.Market}
	setInt(p, "limit", r.Limit)
	return p.SetIf("order", r.Order)
}

// TradesRequest queries public or own trades of one market. From and To are
// trade ids; Timestamp is a unix time upper bound.
type TradesRequest struct {
	Market    string `validate:"required"`
	Limit     int    `validate:"min=0"`
	Timestamp int64  `validate:"min=0"`
	From      int64  `validate:"min=0"`
	To        int64  `validate:"min=0"`
	OrderBy   string `validate:"omitempty,oneof=asc des"`
}

func (r *TradesRequest) params() core.Params {
	p := core.Params{"market": r.Market}
	setInt(p, "limit", r.Limit)
	setInt64(p, "timestamp", r.Timestamp)
	setInt64(p, "from", r.From)
	setInt64(p, "to", r.To)
	return p.SetIf("order_by", r.OrderBy)
}

// TradesHistoryRequest pages through trade history. Every field is optional.
type TradesHistoryRequest struct {
	Market  string
	Limit   int   `validate:"min=0"`
	From    int64 `validate:"min=0"`
	To      int64 `validate:"min=0"`
	Page    int   `validate:"min=0"`
	OrderBy string `validate:"omitempty,oneof=asc des"`
}

func (r *TradesHistoryRequest) params() core.Params {
	p := core.Params{}
	setInt(p, "limit", r.Limit)
	setInt64(p, "from", r.From)
	setInt64(p, "to", r.To)
	setInt(p, "page", r.Page)
	return p.SetIf("market", r.Market).SetIf("order_by", r.OrderBy)
}

// KlineRequest queries candles. Period is in minutes, one of KlinePeriods.
// TradeID is required by the pending-trades variant only.
type KlineRequest struct {
	Market    string `validate:"required"`
	Limit     int    `validate:"min=0"`
	Period    int    `validate:"kline_period"`
	Timestamp int64  `validate:"min=0"`
	TradeID   int64  `validate:"min=0"`
}

func (r *KlineRequest) params() core.Params {
	p := core.Params{"market": r.Market}
	setInt(p, "limit", r.Limit)
	setInt(p, "period", r.Period)
	setInt64(p, "timestamp", r.Timestamp)
	setInt64(p, "trade_id", r.TradeID)
	return p
}

// OrdersRequest lists own orders. State defaults to wait on the server.
type OrdersRequest struct {
	Market  string
	State   string `validate:"omitempty,oneof=wait done cancel"`
	Limit   int    `validate:"min=0"`
	Page    int    `validate:"min=0"`
	OrderBy string `validate:"omitempty,oneof=asc des"`
}

func (r *OrdersRequest) params() core.Params {
	p := core.Params{}
	setInt(p, "limit", r.Limit)
	setInt(p, "page", r.Page)
	return p.SetIf("market", r.Market).SetIf("state", r.State).SetIf("order_by", r.OrderBy)
}

// OrdersHistoryRequest pages through past orders; From and To are date strings.
type OrdersHistoryRequest struct {
	OrdersRequest
	From string
	To   string
}

func (r *OrdersHistoryRequest) params() core.Params {
	return r.OrdersRequest.params().SetIf("from", r.From).SetIf("to", r.To)
}

// OrderBookRequest lists open orders on both sides of a market.
type OrderBookRequest struct {
	Market    string `validate:"required"`
	AsksLimit int    `validate:"min=0"`
	BidsLimit int    `validate:"min=0"`
}

func (r *OrderBookRequest) params() core.Params {
	p := core.Params{"market": r.Market}
	setInt(p, "asks_limit", r.AsksLimit)
	setInt(p, "bids_limit", r.BidsLimit)
	return p
}

// DepositsRequest lists deposits, optionally for one currency.
type DepositsRequest struct {
	Currency string
	Limit    int `validate:"min=0"`
	State    string
}

func (r *DepositsRequest) params() core.Params {
	p := core.Params{}
	setInt(p, "limit", r.Limit)
	return p.SetIf("currency", r.Currency).SetIf("state", r.State)
}

// WithdrawsRequest lists withdrawals of one currency.
type WithdrawsRequest struct {
	Currency string `validate:"required"`
	Limit    int    `validate:"min=0"`
	State    string
}

func (r *WithdrawsRequest) params() core.Params {
	p := core.Params{"currency": r.Currency}
	setInt(p, "limit", r.Limit)
	return p.SetIf("state", r.State)
}

// CreateWithdrawRequest withdraws Sum of Currency to the address FundUID.
type CreateWithdrawRequest struct {
	Currency string `validate:"required"`
	FundUID  string `validate:"required"`
	Sum      string `validate:"required,numeric"`
	Provider string
	SpeedUp  string
}

func (r *CreateWithdrawRequest) params() core.Params {
	p := core.Params{
		"currency": r.Currency,
		"fund_uid": r.FundUID,
		"sum":      r.Sum,
	}
	return p.SetIf("provider", r.Provider).SetIf("speed_up", r.SpeedUp)
}

// CreateFundSourceRequest saves a withdrawal address under a label.
type CreateFundSourceRequest struct {
	Currency string `validate:"required"`
	UID      string `validate:"required"`
	Extra    string `validate:"required"`
}

func (r *CreateFundSourceRequest) params() core.Params {
	return core.Params{
		"currency": r.Currency,
		"uid":      r.UID,
		"extra":    r.Extra,
	}
}

// multiOrderParams renders a batch of orders on one market as indexed form
// fields, orders[i][side] and so on.
func multiOrderParams(market string, orders []exchange.OrderRequest) (core.Params, error) {
	if market == "" {
		return nil, fmt.Errorf("market is required")
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("at least one order is required")
	}

	p := core.Params{"market": market}
	for i := range orders {
		o := orders[i]
		if o.Market == "" {
			o.Market = market
		}
		if o.Market != market {
			return nil, fmt.Errorf("order %d: market %q differs from batch market %q", i, o.Market, market)
		}
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		maps.Copy(p, o.IndexedParams(i))
	}
	return p, nil
}

// encodeSettings renders the settings map as the JSON object sent in the
// data field. Values that are JSON booleans or numbers become JSON scalars
// with their literal kept; anything else is a JSON string. Keys are emitted
// in sorted order.
func encodeSettings(settings map[string]string) (string, error) {
	if len(settings) == 0 {
		return "", fmt.Errorf("settings are required")
	}

	obj := make(map[string]any, len(settings))
	for k, v := range settings {
		if k == "" {
			return "", fmt.Errorf("settings key must not be empty")
		}
		obj[k] = settingValue(v)
	}

	data, err := settingsAPI.MarshalToString(obj)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return data, nil
}

var settingsAPI = sonic.Config{SortMapKeys: true}.Froze()

func settingValue(v string) any {
	switch {
	case v == "true":
		return true
	case v == "false":
		return false
	case v != "" && (v[0] == '-' || (v[0] >= '0' && v[0] <= '9')) && sonic.Valid([]byte(v)):
		return json.Number(v)
	}
	return v
}

func setInt(p core.Params, key string, v int) {
	if v > 0 {
		p[key] = strconv.Itoa(v)
	}
}

func setInt64(p core.Params, key string, v int64) {
	if v > 0 {
		p[key] = strconv.FormatInt(v, 10)
	}
}
