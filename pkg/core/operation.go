package core

import (
	"net/http"
	"strings"
)

// Operation identifies one remote Graviex endpoint.
type Operation int

// Public market data operations.
const (
	OpMarkets Operation = iota
	OpMarket
	OpTickers
	OpTicker
	OpDepth
	OpTrades
	OpTradesSimple
	OpKline
	OpTimestamp
	OpCurrencyInfo

	// Signed account and trading operations.
	OpMe
	OpRegisterDevice
	OpAccountHistory
	OpDeposits
	OpDeposit
	OpDepositAddress
	OpGenDepositAddress
	OpOrders
	OpCreateOrder
	OpOrdersHistory
	OpCreateOrders
	OpClearOrders
	OpOrder
	OpDeleteOrder
	OpOrderBook
	OpMyTrades
	OpTradesHistory
	OpKlineWithPending
	OpSettingsGet
	OpSettingsStore
	OpWithdraws
	OpCreateWithdraw
	OpFundSources
	OpCreateFundSource
	OpRemoveFundSource
	OpStrategies
	OpMyStrategies
)

// PathID is the placeholder replaced by Endpoint.Resolve.
const PathID = "{id}"

// Endpoint describes how an operation is sent on the wire.
type Endpoint struct {
	Name   string
	Method string
	// Path is relative to APIPrefix and may contain PathID.
	Path   string
	Signed bool
}

// Resolve returns the absolute API path with PathID replaced by id.
func (e Endpoint) Resolve(id string) string {
	return APIPrefix + strings.Replace(e.Path, PathID, id, 1)
}

// HasPathID reports whether the path needs an id to resolve.
func (e Endpoint) HasPathID() bool {
	return strings.Contains(e.Path, PathID)
}

var endpoints = [...]Endpoint{
	OpMarkets:      {"MARKETS", http.MethodGet, "/markets.json", false},
	OpMarket:       {"MARKET", http.MethodGet, "/markets/" + PathID + ".json", false},
	OpTickers:      {"TICKERS", http.MethodGet, "/tickers.json", false},
	OpTicker:       {"TICKER", http.MethodGet, "/tickers/" + PathID + ".json", false},
	OpDepth:        {"DEPTH", http.MethodGet, "/depth.json", false},
	OpTrades:       {"TRADES", http.MethodGet, "/trades.json", false},
	OpTradesSimple: {"TRADES_SIMPLE", http.MethodGet, "/trades_simple.json", false},
	OpKline:        {"KLINE", http.MethodGet, "/k.json", false},
	OpTimestamp:    {"TIMESTAMP", http.MethodGet, "/timestamp.json", false},
	OpCurrencyInfo: {"CURRENCY_INFO", http.MethodGet, "/currency/info.json", false},

	OpMe:                {"ME", http.MethodGet, "/members/me.json", true},
	OpRegisterDevice:    {"REGISTER_DEVICE", http.MethodPost, "/members/me/register_device.json", true},
	OpAccountHistory:    {"ACCOUNT_HISTORY", http.MethodGet, "/account/history.json", true},
	OpDeposits:          {"DEPOSITS", http.MethodGet, "/deposits.json", true},
	OpDeposit:           {"DEPOSIT", http.MethodGet, "/deposit.json", true},
	OpDepositAddress:    {"DEPOSIT_ADDRESS", http.MethodGet, "/deposit_address.json", true},
	OpGenDepositAddress: {"GEN_DEPOSIT_ADDRESS", http.MethodGet, "/gen_deposit_address.json", true},
	OpOrders:            {"ORDERS", http.MethodGet, "/orders.json", true},
	OpCreateOrder:       {"CREATE_ORDER", http.MethodPost, "/orders.json", true},
	OpOrdersHistory:     {"ORDERS_HISTORY", http.MethodGet, "/orders/history.json", true},
	OpCreateOrders:      {"CREATE_ORDERS", http.MethodPost, "/orders/multi.json", true},
	OpClearOrders:       {"CLEAR_ORDERS", http.MethodPost, "/orders/clear.json", true},
	OpOrder:             {"ORDER", http.MethodGet, "/order.json", true},
	OpDeleteOrder:       {"DELETE_ORDER", http.MethodPost, "/order/delete.json", true},
	OpOrderBook:         {"ORDER_BOOK", http.MethodGet, "/order_book.json", true},
	OpMyTrades:          {"MY_TRADES", http.MethodGet, "/trades/my.json", true},
	OpTradesHistory:     {"TRADES_HISTORY", http.MethodGet, "/trades/history.json", true},
	OpKlineWithPending:  {"KLINE_WITH_PENDING", http.MethodGet, "/k_with_pending_trades.json", true},
	OpSettingsGet:       {"SETTINGS_GET", http.MethodGet, "/settings/get.json", true},
	OpSettingsStore:     {"SETTINGS_STORE", http.MethodPost, "/settings/store.json", true},
	OpWithdraws:         {"WITHDRAWS", http.MethodGet, "/withdraws.json", true},
	OpCreateWithdraw:    {"CREATE_WITHDRAW", http.MethodPost, "/create_withdraw.json", true},
	OpFundSources:       {"FUND_SOURCES", http.MethodGet, "/fund_sources.json", true},
	OpCreateFundSource:  {"CREATE_FUND_SOURCE", http.MethodPost, "/create_fund_source.json", true},
	OpRemoveFundSource:  {"REMOVE_FUND_SOURCE", http.MethodPost, "/remove_fund_source.json", true},
	OpStrategies:        {"STRATEGIES", http.MethodGet, "/strategies/list.json", true},
	OpMyStrategies:      {"MY_STRATEGIES", http.MethodGet, "/strategies/my.json", true},
}

// Valid reports whether o names a known endpoint.
func (o Operation) Valid() bool {
	return o >= 0 && int(o) < len(endpoints)
}

// Endpoint returns the wire description of the operation.
func (o Operation) Endpoint() Endpoint {
	return endpoints[o]
}

// String returns the string representation of the operation.
func (o Operation) String() string {
	if !o.Valid() {
		return "UNKNOWN"
	}
	return endpoints[o].Name
}

// Operations returns every known operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, len(endpoints))
	for i := range endpoints {
		ops[i] = Operation(i)
	}
	return ops
}
