package exchange

import (
	"strconv"
	"time"

	"graviex/pkg/core"
)

// Sort orders accepted by order_by.
const (
	OrderAsc  = "asc"
	OrderDesc = "des"
)

type Option func(*Options)

type Options struct {
	Limit     int
	Page      int
	OrderBy   string
	State     *core.OrderState
	Market    string
	Timestamp time.Time
}

func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

func WithPage(page int) Option {
	return func(o *Options) {
		o.Page = page
	}
}

// WithOrderBy sets the sort order, OrderAsc or OrderDesc.
func WithOrderBy(orderBy string) Option {
	return func(o *Options) {
		o.OrderBy = orderBy
	}
}

func WithState(state core.OrderState) Option {
	return func(o *Options) {
		o.State = &state
	}
}

func WithMarket(market string) Option {
	return func(o *Options) {
		o.Market = market
	}
}

// WithTimestamp limits trade queries to trades executed before t.
func WithTimestamp(t time.Time) Option {
	return func(o *Options) {
		o.Timestamp = t
	}
}

func ApplyOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apply writes every option that was set into p and returns it.
func (o *Options) Apply(p core.Params) core.Params {
	if p == nil {
		p = make(core.Params)
	}
	if o.Limit > 0 {
		p["limit"] = strconv.Itoa(o.Limit)
	}
	if o.Page > 0 {
		p["page"] = strconv.Itoa(o.Page)
	}
	if o.State != nil {
		p["state"] = o.State.String()
	}
	if !o.Timestamp.IsZero() {
		p["timestamp"] = strconv.FormatInt(o.Timestamp.Unix(), 10)
	}
	p.SetIf("order_by", o.OrderBy).SetIf("market", o.Market)
	return p
}
