package core

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	req := NewRequest(http.MethodGet, "/webapi/v3/order.json")

	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/webapi/v3/order.json", req.Path)
	assert.NotNil(t, req.Params)
	assert.Empty(t, req.Params)
	assert.False(t, req.RequireAuth)
}

func TestRequest_SetParam(t *testing.T) {
	req := &Request{}
	req.SetParam("order_id", "42")

	assert.Equal(t, Params{"order_id": "42"}, req.Params)
}

func TestRequest_SetParamsMerges(t *testing.T) {
	req := NewRequest(http.MethodGet, "/p").
		SetParam("market", "giobtc").
		SetParams(Params{"limit": "10", "market": "ethbtc"})

	assert.Equal(t, Params{"market": "ethbtc", "limit": "10"}, req.Params)

	var empty Request
	empty.SetParams(nil)
	assert.NotNil(t, empty.Params)
}

func TestRequest_Chained(t *testing.T) {
	req := NewRequest(http.MethodPost, "/webapi/v3/orders.json").
		SetParam("market", "giobtc").
		SetParam("side", "buy").
		SetRequireAuth(true)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Len(t, req.Params, 2)
	assert.True(t, req.RequireAuth)
}

func TestParams(t *testing.T) {
	t.Run("clone is independent", func(t *testing.T) {
		p := Params{"a": "1"}
		c := p.Clone()
		c["b"] = "2"
		assert.Equal(t, Params{"a": "1"}, p)
		assert.Equal(t, Params{"a": "1", "b": "2"}, c)
	})

	t.Run("clone of nil", func(t *testing.T) {
		var p Params
		c := p.Clone()
		assert.NotNil(t, c)
		assert.Empty(t, c)
	})

	t.Run("set and set if", func(t *testing.T) {
		p := Params{}.Set("a", "1").SetIf("b", "").SetIf("c", "3")
		assert.Equal(t, Params{"a": "1", "c": "3"}, p)
	})
}

func TestIsReservedKey(t *testing.T) {
	for _, k := range ReservedKeys {
		assert.True(t, IsReservedKey(k), k)
	}
	assert.False(t, IsReservedKey("market"))
	assert.False(t, IsReservedKey("Tonce"))
}

func TestIsSupportedMethod(t *testing.T) {
	assert.True(t, IsSupportedMethod(http.MethodGet))
	assert.True(t, IsSupportedMethod(http.MethodPost))
	assert.False(t, IsSupportedMethod(http.MethodPut))
	assert.False(t, IsSupportedMethod(http.MethodDelete))
	assert.False(t, IsSupportedMethod("get"))
}
