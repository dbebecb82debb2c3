package graviex

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"graviex/pkg/core"
	"graviex/pkg/exchange"
	"graviex/pkg/session"
	"graviex/pkg/signer"
)

// Name is the exchange identifier returned by Exchange.Name.
const Name = "graviex"

// Exchange is the Graviex v3 API client. Every endpoint is a method; public
// ones are sent unsigned, account and trading ones are signed by the
// session. Typed endpoints decode into core types, the rest return the raw
// response body.
type Exchange struct {
	session    *session.Session
	logger     zerolog.Logger
	normalizer *Normalizer
}

var _ exchange.Exchange = (*Exchange)(nil)

// Option is a functional option for configuring the Exchange.
type Option func(*Options)

// Options holds configuration options for the Exchange.
type Options struct {
	Logger     zerolog.Logger
	Registerer prometheus.Registerer
	Tonce      *signer.Tonce
}

// WithLogger returns an option that sets the logger for the exchange and its session.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetrics returns an option that registers request metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = reg
	}
}

// WithTonce returns an option that shares a tonce generator with other clients.
func WithTonce(t *signer.Tonce) Option {
	return func(o *Options) {
		o.Tonce = t
	}
}

// New creates an Exchange and the session it sends through.
func New(config *core.Config, opts ...Option) (*Exchange, error) {
	options := &Options{
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	sessOpts := []session.Option{session.WithLogger(options.Logger)}
	if options.Registerer != nil {
		sessOpts = append(sessOpts, session.WithMetrics(options.Registerer))
	}
	if options.Tonce != nil {
		sessOpts = append(sessOpts, session.WithTonce(options.Tonce))
	}

	sess, err := session.New(config, sessOpts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return NewWithSession(sess, options.Logger), nil
}

// NewWithSession wraps an existing session.
func NewWithSession(sess *session.Session, logger zerolog.Logger) *Exchange {
	return &Exchange{
		session:    sess,
		logger:     logger.With().Str("exchange", Name).Logger(),
		normalizer: NewNormalizer(),
	}
}

// Name returns the exchange identifier.
func (e *Exchange) Name() string {
	return Name
}

// Session returns the underlying session.
func (e *Exchange) Session() *session.Session {
	return e.session
}

// Close releases the underlying session.
func (e *Exchange) Close() error {
	return e.session.Close()
}

// call sends op with its catalogued method and signing flag.
func (e *Exchange) call(ctx context.Context, op core.Operation, id string, params core.Params) (string, error) {
	ep := op.Endpoint()
	path := ep.Resolve(url.PathEscape(id))

	e.logger.Debug().Stringer("op", op).Str("path", path).Msg("calling endpoint")

	if ep.Signed {
		return e.session.SignAndDispatch(ctx, ep.Method, path, params)
	}
	return e.session.Dispatch(ctx, ep.Method, path, params)
}

// decode unmarshals body into a new T. Failures carry the raw body.
func decode[T any](op core.Operation, path, body string) (*T, error) {
	var v T
	if err := sonic.UnmarshalString(body, &v); err != nil {
		return nil, core.NewDecodeError(op.Endpoint().Method, path, body, err)
	}
	return &v, nil
}

// invalid reports a request rejected before any network I/O.
func invalid(op core.Operation, err error) error {
	ep := op.Endpoint()
	return core.NewBadRequestError(ep.Method, ep.Resolve(""), err)
}

func validateRequest(op core.Operation, req any) error {
	if err := validate.Struct(req); err != nil {
		return invalid(op, err)
	}
	return nil
}

func required(op core.Operation, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(op, fmt.Errorf("parameter %q is required", name))
	}
	return nil
}

// Markets lists every market.
func (e *Exchange) Markets(ctx context.Context) ([]core.Market, error) {
	body, err := e.call(ctx, core.OpMarkets, "", nil)
	if err != nil {
		return nil, err
	}
	markets, err := decode[[]core.Market](core.OpMarkets, core.OpMarkets.Endpoint().Resolve(""), body)
	if err != nil {
		return nil, err
	}
	return *markets, nil
}

// Market returns the fee and precision settings of one market.
func (e *Exchange) Market(ctx context.Context, market string) (*core.MarketInfo, error) {
	if err := required(core.OpMarket, "market", market); err != nil {
		return nil, err
	}
	body, err := e.call(ctx, core.OpMarket, market, nil)
	if err != nil {
		return nil, err
	}
	data, err := decode[graviexMarketEnvelope](core.OpMarket, core.OpMarket.Endpoint().Resolve(market), body)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeMarketInfo(data), nil
}

// Tickers returns the tickers of every market, sorted by market id.
func (e *Exchange) Tickers(ctx context.Context) ([]core.Ticker, error) {
	body, err := e.call(ctx, core.OpTickers, "", nil)
	if err != nil {
		return nil, err
	}
	data, err := decode[map[string]*graviexTicker](core.OpTickers, core.OpTickers.Endpoint().Resolve(""), body)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeTickers(*data), nil
}

// Ticker returns the ticker of one market.
func (e *Exchange) Ticker(ctx context.Context, market string) (*core.Ticker, error) {
	if err := required(core.OpTicker, "market", market); err != nil {
		return nil, err
	}
	body, err := e.call(ctx, core.OpTicker, market, nil)
	if err != nil {
		return nil, err
	}
	data, err := decode[graviexTicker](core.OpTicker, core.OpTicker.Endpoint().Resolve(market), body)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeTicker(market, data), nil
}

// Depth returns aggregated price levels of one market.
func (e *Exchange) Depth(ctx context.Context, req *DepthRequest) (*core.Depth, error) {
	op := core.OpDepth
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}
	body, err := e.call(ctx, op, "", req.params())
	if err != nil {
		return nil, err
	}
	path := op.Endpoint().Resolve("")
	data, err := decode[graviexDepth](op, path, body)
	if err != nil {
		return nil, err
	}
	depth, err := e.normalizer.NormalizeDepth(req.Market, data)
	if err != nil {
		return nil, core.NewDecodeError(op.Endpoint().Method, path, body, err)
	}
	return depth, nil
}

// Trades returns recent public trades of one market.
func (e *Exchange) Trades(ctx context.Context, req *TradesRequest) ([]core.Trade, error) {
	return e.trades(ctx, core.OpTrades, req)
}

// MyTrades returns the caller's trades on one market.
func (e *Exchange) MyTrades(ctx context.Context, req *TradesRequest) ([]core.Trade, error) {
	return e.trades(ctx, core.OpMyTrades, req)
}

func (e *Exchange) trades(ctx context.Context, op core.Operation, req *TradesRequest) ([]core.Trade, error) {
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}
	return e.decodeTrades(ctx, op, req.params())
}

// TradesHistory pages through the caller's trade history.
func (e *Exchange) TradesHistory(ctx context.Context, req *TradesHistoryRequest) ([]core.Trade, error) {
	op := core.OpTradesHistory
	if req == nil {
		req = &TradesHistoryRequest{}
	}
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}
	return e.decodeTrades(ctx, op, req.params())
}

func (e *Exchange) decodeTrades(ctx context.Context, op core.Operation, params core.Params) ([]core.Trade, error) {
	body, err := e.call(ctx, op, "", params)
	if err != nil {
		return nil, err
	}
	data, err := decode[[]graviexTrade](op, op.Endpoint().Resolve(""), body)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeTrades(*data), nil
}

// TradesSimple returns the condensed trade list of one market, raw.
func (e *Exchange) TradesSimple(ctx context.Context, market string) (string, error) {
	if err := required(core.OpTradesSimple, "market", market); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpTradesSimple, "", core.Params{"market": market})
}

// Kline returns candles of one market, raw.
func (e *Exchange) Kline(ctx context.Context, req *KlineRequest) (string, error) {
	if err := validateRequest(core.OpKline, req); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpKline, "", req.params())
}

// KlineWithPending returns candles plus the trades after req.TradeID, raw.
func (e *Exchange) KlineWithPending(ctx context.Context, req *KlineRequest) (string, error) {
	op := core.OpKlineWithPending
	if err := validateRequest(op, req); err != nil {
		return "", err
	}
	if req.TradeID <= 0 {
		return "", invalid(op, errors.New(`parameter "trade_id" is required`))
	}
	return e.call(ctx, op, "", req.params())
}

// Timestamp returns the server time.
func (e *Exchange) Timestamp(ctx context.Context) (time.Time, error) {
	op := core.OpTimestamp
	body, err := e.call(ctx, op, "", nil)
	if err != nil {
		return time.Time{}, err
	}
	sec, err := decode[int64](op, op.Endpoint().Resolve(""), body)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(*sec, 0).UTC(), nil
}

// CurrencyInfo returns details of one currency, raw.
func (e *Exchange) CurrencyInfo(ctx context.Context, currency string) (string, error) {
	if err := required(core.OpCurrencyInfo, "currency", currency); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpCurrencyInfo, "", core.Params{"currency": currency})
}

// Me returns the caller's profile and balances.
func (e *Exchange) Me(ctx context.Context) (*core.Member, error) {
	op := core.OpMe
	body, err := e.call(ctx, op, "", nil)
	if err != nil {
		return nil, err
	}
	data, err := decode[graviexMember](op, op.Endpoint().Resolve(""), body)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeMember(data), nil
}

// RegisterDevice registers a push notification device, raw.
func (e *Exchange) RegisterDevice(ctx context.Context, device string) (string, error) {
	if err := required(core.OpRegisterDevice, "device", device); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpRegisterDevice, "", core.Params{"device": device})
}

// AccountHistory returns the caller's balance movements, raw.
func (e *Exchange) AccountHistory(ctx context.Context, opts ...exchange.Option) (string, error) {
	return e.call(ctx, core.OpAccountHistory, "", exchange.ApplyOptions(opts...).Apply(nil))
}

// Deposits lists the caller's deposits, raw.
func (e *Exchange) Deposits(ctx context.Context, req *DepositsRequest) (string, error) {
	if req == nil {
		req = &DepositsRequest{}
	}
	if err := validateRequest(core.OpDeposits, req); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpDeposits, "", req.params())
}

// Deposit returns one deposit by transaction id, raw.
func (e *Exchange) Deposit(ctx context.Context, txid string) (string, error) {
	if err := required(core.OpDeposit, "txid", txid); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpDeposit, "", core.Params{"txid": txid})
}

// DepositAddress returns the current deposit address of a currency, raw.
func (e *Exchange) DepositAddress(ctx context.Context, currency string) (string, error) {
	if err := required(core.OpDepositAddress, "currency", currency); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpDepositAddress, "", core.Params{"currency": currency})
}

// GenDepositAddress asks the exchange for a fresh deposit address, raw.
func (e *Exchange) GenDepositAddress(ctx context.Context, currency string) (string, error) {
	if err := required(core.OpGenDepositAddress, "currency", currency); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpGenDepositAddress, "", core.Params{"currency": currency})
}

// Orders lists the caller's orders.
func (e *Exchange) Orders(ctx context.Context, req *OrdersRequest) ([]core.Order, error) {
	if req == nil {
		req = &OrdersRequest{}
	}
	if err := validateRequest(core.OpOrders, req); err != nil {
		return nil, err
	}
	return e.decodeOrders(ctx, core.OpOrders, req.params())
}

// OrdersHistory pages through the caller's past orders.
func (e *Exchange) OrdersHistory(ctx context.Context, req *OrdersHistoryRequest) ([]core.Order, error) {
	if req == nil {
		req = &OrdersHistoryRequest{}
	}
	if err := validateRequest(core.OpOrdersHistory, req); err != nil {
		return nil, err
	}
	return e.decodeOrders(ctx, core.OpOrdersHistory, req.params())
}

// CreateOrder places one order.
func (e *Exchange) CreateOrder(ctx context.Context, req *exchange.OrderRequest) (*core.Order, error) {
	op := core.OpCreateOrder
	if req == nil {
		return nil, invalid(op, errors.New("order request is required"))
	}
	if err := req.Validate(); err != nil {
		return nil, invalid(op, err)
	}
	return e.decodeOrder(ctx, op, req.Params())
}

// CreateOrders places several orders on one market in a single request.
func (e *Exchange) CreateOrders(ctx context.Context, market string, orders []exchange.OrderRequest) ([]core.Order, error) {
	op := core.OpCreateOrders
	params, err := multiOrderParams(market, orders)
	if err != nil {
		return nil, invalid(op, err)
	}
	return e.decodeOrders(ctx, op, params)
}

// ClearOrders cancels every open order, or only those on one side when side
// is given.
func (e *Exchange) ClearOrders(ctx context.Context, side ...core.OrderSide) ([]core.Order, error) {
	params := core.Params{}
	if len(side) > 0 {
		params["side"] = side[0].String()
	}
	return e.decodeOrders(ctx, core.OpClearOrders, params)
}

// Order returns one order with its trades.
func (e *Exchange) Order(ctx context.Context, orderID string) (*core.Order, error) {
	if err := required(core.OpOrder, "order_id", orderID); err != nil {
		return nil, err
	}
	return e.decodeOrder(ctx, core.OpOrder, core.Params{"order_id": orderID})
}

// DeleteOrder cancels one order. The returned order may still be in state
// wait; cancellation completes asynchronously.
func (e *Exchange) DeleteOrder(ctx context.Context, orderID string) (*core.Order, error) {
	if err := required(core.OpDeleteOrder, "order_id", orderID); err != nil {
		return nil, err
	}
	return e.decodeOrder(ctx, core.OpDeleteOrder, core.Params{"order_id": orderID})
}

func (e *Exchange) decodeOrder(ctx context.Context, op core.Operation, params core.Params) (*core.Order, error) {
	body, err := e.call(ctx, op, "", params)
	if err != nil {
		return nil, err
	}
	data, err := decode[graviexOrder](op, op.Endpoint().Resolve(""), body)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeOrder(data), nil
}

func (e *Exchange) decodeOrders(ctx context.Context, op core.Operation, params core.Params) ([]core.Order, error) {
	body, err := e.call(ctx, op, "", params)
	if err != nil {
		return nil, err
	}
	data, err := decode[[]graviexOrder](op, op.Endpoint().Resolve(""), body)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeOrders(*data), nil
}

// OrderBook returns the open orders on both sides of one market.
func (e *Exchange) OrderBook(ctx context.Context, req *OrderBookRequest) (*core.OrderBook, error) {
	op := core.OpOrderBook
	if err := validateRequest(op, req); err != nil {
		return nil, err
	}
	body, err := e.call(ctx, op, "", req.params())
	if err != nil {
		return nil, err
	}
	data, err := decode[graviexOrderBook](op, op.Endpoint().Resolve(""), body)
	if err != nil {
		return nil, err
	}
	return e.normalizer.NormalizeOrderBook(req.Market, data), nil
}

// Settings returns the caller's stored settings, raw.
func (e *Exchange) Settings(ctx context.Context) (string, error) {
	return e.call(ctx, core.OpSettingsGet, "", nil)
}

// StoreSettings saves settings as a JSON object in the data field.
func (e *Exchange) StoreSettings(ctx context.Context, settings map[string]string) (string, error) {
	data, err := encodeSettings(settings)
	if err != nil {
		return "", invalid(core.OpSettingsStore, err)
	}
	return e.call(ctx, core.OpSettingsStore, "", core.Params{"data": data})
}

// Withdraws lists withdrawals of one currency, raw.
func (e *Exchange) Withdraws(ctx context.Context, req *WithdrawsRequest) (string, error) {
	if err := validateRequest(core.OpWithdraws, req); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpWithdraws, "", req.params())
}

// CreateWithdraw requests a withdrawal, raw.
func (e *Exchange) CreateWithdraw(ctx context.Context, req *CreateWithdrawRequest) (string, error) {
	if err := validateRequest(core.OpCreateWithdraw, req); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpCreateWithdraw, "", req.params())
}

// FundSources lists saved withdrawal addresses of one currency, raw.
func (e *Exchange) FundSources(ctx context.Context, currency string) (string, error) {
	if err := required(core.OpFundSources, "currency", currency); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpFundSources, "", core.Params{"currency": currency})
}

// CreateFundSource saves a withdrawal address, raw.
func (e *Exchange) CreateFundSource(ctx context.Context, req *CreateFundSourceRequest) (string, error) {
	if err := validateRequest(core.OpCreateFundSource, req); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpCreateFundSource, "", req.params())
}

// RemoveFundSource deletes a saved withdrawal address, raw.
func (e *Exchange) RemoveFundSource(ctx context.Context, id string) (string, error) {
	if err := required(core.OpRemoveFundSource, "id", id); err != nil {
		return "", err
	}
	return e.call(ctx, core.OpRemoveFundSource, "", core.Params{"id": id})
}

// Strategies lists the available trading strategies, raw.
func (e *Exchange) Strategies(ctx context.Context) (string, error) {
	return e.call(ctx, core.OpStrategies, "", nil)
}

// MyStrategies lists the caller's strategies, raw.
func (e *Exchange) MyStrategies(ctx context.Context) (string, error) {
	return e.call(ctx, core.OpMyStrategies, "", nil)
}

// GetTicker implements exchange.Exchange.
func (e *Exchange) GetTicker(ctx context.Context, market string, _ ...exchange.Option) (*core.Ticker, error) {
	return e.Ticker(ctx, market)
}

// GetTickers implements exchange.Exchange.
func (e *Exchange) GetTickers(ctx context.Context, _ ...exchange.Option) ([]core.Ticker, error) {
	return e.Tickers(ctx)
}

// GetOrderBook implements exchange.Exchange. Limit caps both sides.
func (e *Exchange) GetOrderBook(ctx context.Context, market string, opts ...exchange.Option) (*core.OrderBook, error) {
	o := exchange.ApplyOptions(opts...)
	return e.OrderBook(ctx, &OrderBookRequest{Market: market, AsksLimit: o.Limit, BidsLimit: o.Limit})
}

// GetDepth implements exchange.Exchange.
func (e *Exchange) GetDepth(ctx context.Context, market string, opts ...exchange.Option) (*core.Depth, error) {
	o := exchange.ApplyOptions(opts...)
	return e.Depth(ctx, &DepthRequest{Market: market, Limit: o.Limit, Order: o.OrderBy})
}

// GetTrades implements exchange.Exchange. The sequence stops after the
// first error.
func (e *Exchange) GetTrades(ctx context.Context, market string, opts ...exchange.Option) iter.Seq2[*core.Trade, error] {
	return func(yield func(*core.Trade, error) bool) {
		o := exchange.ApplyOptions(opts...)
		req := &TradesRequest{Market: market, Limit: o.Limit, OrderBy: o.OrderBy}
		if !o.Timestamp.IsZero() {
			req.Timestamp = o.Timestamp.Unix()
		}

		trades, err := e.Trades(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}

		for i := range trades {
			if !yield(&trades[i], nil) {
				return
			}
		}
	}
}

// GetBalance implements exchange.Exchange.
func (e *Exchange) GetBalance(ctx context.Context, _ ...exchange.Option) ([]core.Account, error) {
	me, err := e.Me(ctx)
	if err != nil {
		return nil, err
	}
	return me.Accounts, nil
}

// PlaceOrder implements exchange.Exchange.
func (e *Exchange) PlaceOrder(ctx context.Context, req *exchange.OrderRequest, _ ...exchange.Option) (*core.Order, error) {
	return e.CreateOrder(ctx, req)
}

// CancelOrder implements exchange.Exchange.
func (e *Exchange) CancelOrder(ctx context.Context, req *exchange.CancelRequest, _ ...exchange.Option) (*core.Order, error) {
	if req == nil {
		return nil, invalid(core.OpDeleteOrder, errors.New("cancel request is required"))
	}
	if err := req.Validate(); err != nil {
		return nil, invalid(core.OpDeleteOrder, err)
	}
	return e.DeleteOrder(ctx, req.OrderID)
}

// GetOrder implements exchange.Exchange.
func (e *Exchange) GetOrder(ctx context.Context, req *exchange.OrderQuery, _ ...exchange.Option) (*core.Order, error) {
	if req == nil {
		return nil, invalid(core.OpOrder, errors.New("order query is required"))
	}
	if err := req.Validate(); err != nil {
		return nil, invalid(core.OpOrder, err)
	}
	return e.Order(ctx, req.OrderID)
}

// GetOpenOrders implements exchange.Exchange. State defaults to wait.
func (e *Exchange) GetOpenOrders(ctx context.Context, market string, opts ...exchange.Option) ([]core.Order, error) {
	o := exchange.ApplyOptions(opts...)
	req := &OrdersRequest{
		Market:  market,
		State:   core.StateWait.String(),
		Limit:   o.Limit,
		Page:    o.Page,
		OrderBy: o.OrderBy,
	}
	if o.State != nil {
		req.State = o.State.String()
	}
	return e.Orders(ctx, req)
}
