package ordermanager

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"graviex/pkg/core"
	"graviex/pkg/exchange"
)

// OrderCallback receives an order every time the manager records a change.
type OrderCallback func(*core.Order)

// ManagerConfig bounds the number of orders kept in memory.
type ManagerConfig struct {
	MaxOrders int `json:"max_orders"`
}

// Manager places orders through an exchange and keeps the last known state
// of each one. It is safe for concurrent use. Tracked orders are replaced,
// never modified, and every order handed out is a private copy.
type Manager struct {
	exchange exchange.Exchange
	config   ManagerConfig
	logger   zerolog.Logger

	mu sync.RWMutex
	// pending counts placements in flight; they hold a slot against MaxOrders.
	pending int
	orders  map[string]*core.Order

	callbacks   []OrderCallback
	callbacksMu sync.RWMutex
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager. MaxOrders defaults to 10000.
func NewManager(ex exchange.Exchange, config ManagerConfig, opts ...Option) *Manager {
	if config.MaxOrders <= 0 {
		config.MaxOrders = 10000
	}

	m := &Manager{
		exchange: ex,
		config:   config,
		logger:   zerolog.Nop(),
		orders:   make(map[string]*core.Order),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PlaceOrder validates req, places it and starts tracking the result.
func (m *Manager) PlaceOrder(ctx context.Context, req *exchange.OrderRequest) (*core.Order, error) {
	if req == nil {
		return nil, fmt.Errorf("order request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("order validation: %w", err)
	}

	m.mu.Lock()
	if len(m.orders)+m.pending >= m.config.MaxOrders {
		m.mu.Unlock()
		return nil, fmt.Errorf("order limit reached: %d", m.config.MaxOrders)
	}
	m.pending++
	m.mu.Unlock()

	placed, err := m.exchange.PlaceOrder(ctx, req)
	if err == nil && placed.ID == "" {
		err = fmt.Errorf("exchange returned no order id")
	}
	if err != nil {
		m.mu.Lock()
		m.pending--
		m.mu.Unlock()
		return nil, fmt.Errorf("place order: %w", err)
	}

	tracked := placed.Clone()
	if tracked.Market == "" {
		tracked.Market = req.Market
	}

	m.mu.Lock()
	m.pending--
	m.orders[tracked.ID] = tracked
	m.mu.Unlock()

	m.logger.Debug().
		Str("order_id", tracked.ID).
		Str("market", tracked.Market).
		Stringer("side", tracked.Side).
		Msg("order placed")

	m.notifyCallbacks(tracked)
	return tracked.Clone(), nil
}

// CancelOrder asks the exchange to cancel a tracked order. Cancellation is
// asynchronous on Graviex, so the tracked state only changes once the
// exchange reports it.
func (m *Manager) CancelOrder(ctx context.Context, orderID string) (*core.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order ID is required")
	}

	order, ok := m.GetOrder(orderID)
	if !ok {
		return nil, fmt.Errorf("order not found: %s", orderID)
	}
	if order.State.IsTerminal() {
		return nil, fmt.Errorf("cannot cancel order in terminal state: %s", order.State)
	}

	updated, err := m.exchange.CancelOrder(ctx, &exchange.CancelRequest{OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	return m.apply(orderID, updated)
}

// SyncOrder refreshes a tracked order from the exchange.
func (m *Manager) SyncOrder(ctx context.Context, orderID string) (*core.Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order ID is required")
	}
	if _, ok := m.GetOrder(orderID); !ok {
		return nil, fmt.Errorf("order not found: %s", orderID)
	}

	updated, err := m.exchange.GetOrder(ctx, &exchange.OrderQuery{OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("sync order: %w", err)
	}
	return m.apply(orderID, updated)
}

// SyncOpenOrders refreshes every tracked order that is still waiting and
// returns the first error encountered.
func (m *Manager) SyncOpenOrders(ctx context.Context) error {
	var firstErr error
	for _, order := range m.GetOpenOrders() {
		if _, err := m.SyncOrder(ctx, order.ID); err != nil {
			m.logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to sync order")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// apply merges an exchange report into a copy of the tracked order and
// swaps it in.
func (m *Manager) apply(orderID string, updated *core.Order) (*core.Order, error) {
	m.mu.Lock()
	existing, ok := m.orders[orderID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("order not found: %s", orderID)
	}
	if !isValidTransition(existing.State, updated.State) {
		m.mu.Unlock()
		return nil, fmt.Errorf("invalid state transition from exchange: %s -> %s", existing.State, updated.State)
	}

	next := existing.Clone()
	next.State = updated.State
	next.RemainingVolume.Set(&updated.RemainingVolume)
	next.ExecutedVolume.Set(&updated.ExecutedVolume)
	next.TradesCount = updated.TradesCount
	if !updated.AvgPrice.IsZero() {
		next.AvgPrice.Set(&updated.AvgPrice)
	}
	if len(updated.Trades) > 0 {
		next.Trades = updated.Clone().Trades
	}
	m.orders[orderID] = next
	m.mu.Unlock()

	m.notifyCallbacks(next)
	return next.Clone(), nil
}

// GetOrder returns a copy of the tracked order.
func (m *Manager) GetOrder(orderID string) (*core.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

// GetOrders returns copies of the tracked orders matching filter, sorted by id.
func (m *Manager) GetOrders(filter OrderFilter) []*core.Order {
	m.mu.RLock()
	result := make([]*core.Order, 0, len(m.orders))
	for _, order := range m.orders {
		if filter.Matches(order) {
			result = append(result, order.Clone())
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(result, func(a, b *core.Order) int {
		if len(a.ID) != len(b.ID) {
			return len(a.ID) - len(b.ID)
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return result
}

// GetOpenOrders returns the tracked orders still in state wait.
func (m *Manager) GetOpenOrders() []*core.Order {
	wait := core.StateWait
	return m.GetOrders(OrderFilter{State: &wait})
}

// CancelAllOrders cancels every open tracked order, optionally only on one
// market. Failures are logged and the first one is returned.
func (m *Manager) CancelAllOrders(ctx context.Context, market string) error {
	wait := core.StateWait
	var firstErr error
	for _, order := range m.GetOrders(OrderFilter{Market: market, State: &wait}) {
		if _, err := m.CancelOrder(ctx, order.ID); err != nil {
			m.logger.Warn().
				Err(err).
				Str("order_id", order.ID).
				Msg("failed to cancel order")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Forget stops tracking orders in a terminal state and returns how many
// were dropped.
func (m *Manager) Forget() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, order := range m.orders {
		if order.State.IsTerminal() {
			delete(m.orders, id)
			n++
		}
	}
	return n
}

// OnOrderUpdate registers a callback. Each callback receives its own copy.
func (m *Manager) OnOrderUpdate(callback OrderCallback) {
	m.callbacksMu.Lock()
	defer m.callbacksMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

func (m *Manager) notifyCallbacks(order *core.Order) {
	m.callbacksMu.RLock()
	callbacks := slices.Clone(m.callbacks)
	m.callbacksMu.RUnlock()

	for _, callback := range callbacks {
		callback(order.Clone())
	}
}

// OrderFilter selects tracked orders. Nil and empty fields match anything.
type OrderFilter struct {
	Market string           `json:"market,omitempty"`
	Side   *core.OrderSide  `json:"side,omitempty"`
	State  *core.OrderState `json:"state,omitempty"`
	Type   *core.OrderType  `json:"type,omitempty"`
}

func (f *OrderFilter) Matches(order *core.Order) bool {
	if f.Market != "" && order.Market != f.Market {
		return false
	}
	if f.Side != nil && order.Side != *f.Side {
		return false
	}
	if f.State != nil && order.State != *f.State {
		return false
	}
	if f.Type != nil && order.Type != *f.Type {
		return false
	}
	return true
}

// isValidTransition allows wait to move to done or cancel. Terminal states
// never change.
func isValidTransition(from, to core.OrderState) bool {
	if from == to {
		return true
	}
	return from == core.StateWait && to.IsTerminal()
}
