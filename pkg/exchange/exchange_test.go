package exchange

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graviex/pkg/core"
)

func dec(t *testing.T, s string) apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return *d
}

func TestOrderRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     OrderRequest
		wantErr bool
	}{
		{
			name: "limit buy",
			req:  OrderRequest{Market: "btcusd", Side: core.SideBuy, Type: core.TypeLimit, Price: dec(t, "0.5"), Volume: dec(t, "10")},
		},
		{
			name: "market sell without price",
			req:  OrderRequest{Market: "btcusd", Side: core.SideSell, Type: core.TypeMarket, Volume: dec(t, "1")},
		},
		{
			name:    "missing market",
			req:     OrderRequest{Side: core.SideBuy, Type: core.TypeLimit, Price: dec(t, "1"), Volume: dec(t, "1")},
			wantErr: true,
		},
		{
			name:    "zero volume",
			req:     OrderRequest{Market: "btcusd", Type: core.TypeLimit, Price: dec(t, "1")},
			wantErr: true,
		},
		{
			name:    "negative volume",
			req:     OrderRequest{Market: "btcusd", Type: core.TypeMarket, Volume: dec(t, "-1")},
			wantErr: true,
		},
		{
			name:    "limit without price",
			req:     OrderRequest{Market: "btcusd", Type: core.TypeLimit, Volume: dec(t, "1")},
			wantErr: true,
		},
		{
			name:    "invalid side",
			req:     OrderRequest{Market: "btcusd", Side: core.OrderSide(7), Type: core.TypeMarket, Volume: dec(t, "1")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderRequest_Params(t *testing.T) {
	limit := OrderRequest{Market: "btcusd", Side: core.SideBuy, Type: core.TypeLimit, Price: dec(t, "0.5"), Volume: dec(t, "1E+1")}
	assert.Equal(t, core.Params{
		"market":   "btcusd",
		"side":     "buy",
		"volume":   "10",
		"price":    "0.5",
		"ord_type": "limit",
	}, limit.Params())

	market := OrderRequest{Market: "btcusd", Side: core.SideSell, Type: core.TypeMarket, Price: dec(t, "3"), Volume: dec(t, "0.25")}
	assert.Equal(t, core.Params{
		"market":   "btcusd",
		"side":     "sell",
		"volume":   "0.25",
		"ord_type": "market",
	}, market.Params())
}

func TestOrderRequest_IndexedParams(t *testing.T) {
	req := OrderRequest{Market: "btcusd", Side: core.SideSell, Type: core.TypeLimit, Price: dec(t, "2"), Volume: dec(t, "3")}

	assert.Equal(t, core.Params{
		"orders[1][side]":     "sell",
		"orders[1][volume]":   "3",
		"orders[1][price]":    "2",
		"orders[1][ord_type]": "limit",
	}, req.IndexedParams(1))
}

func TestCancelRequest_Validate(t *testing.T) {
	assert.NoError(t, (&CancelRequest{OrderID: "1"}).Validate())
	assert.Error(t, (&CancelRequest{}).Validate())
	assert.NoError(t, (&OrderQuery{OrderID: "1"}).Validate())
	assert.Error(t, (&OrderQuery{}).Validate())
}

func TestOptions_Apply(t *testing.T) {
	opts := ApplyOptions(
		WithLimit(50),
		WithPage(2),
		WithOrderBy(OrderAsc),
		WithState(core.StateDone),
		WithMarket("btcusd"),
		WithTimestamp(time.Unix(1620000000, 0)),
	)

	assert.Equal(t, core.Params{
		"limit":     "50",
		"page":      "2",
		"order_by":  "asc",
		"state":     "done",
		"market":    "btcusd",
		"timestamp": "1620000000",
	}, opts.Apply(nil))
}

func TestOptions_ApplyKeepsExisting(t *testing.T) {
	p := core.Params{"market": "ethbtc"}

	got := ApplyOptions().Apply(p)

	assert.Equal(t, core.Params{"market": "ethbtc"}, got)
}

func TestOptions_StateZeroValue(t *testing.T) {
	// StateWait is the zero value and must still be sent when requested.
	got := ApplyOptions(WithState(core.StateWait)).Apply(nil)
	assert.Equal(t, "wait", got["state"])
}
