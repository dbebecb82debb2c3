package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graviex/pkg/core"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(&Config{BaseURL: baseURL, Timeout: 2 * time.Second}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClient_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{"nil", nil},
		{"missing_base_url", &Config{Timeout: time.Second}},
		{"bad_base_url", &Config{BaseURL: "not a url", Timeout: time.Second}},
		{"zero_timeout", &Config{BaseURL: "https://graviex.net"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.config)
			assert.Nil(t, c)
			assert.Error(t, err)
		})
	}
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/webapi/v3/depth.json", r.URL.Path)
		assert.Equal(t, "btcusd", r.URL.Query().Get("market"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"timestamp":1620000000}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	body, err := c.Get(context.Background(), "/webapi/v3/depth.json", core.Params{"market": "btcusd", "limit": "5"})

	require.NoError(t, err)
	assert.Equal(t, `{"timestamp":1620000000}`, body)
}

func TestClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webapi/v3/orders.json", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded"))
		assert.Empty(t, r.URL.RawQuery)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "btcusd", r.PostForm.Get("market"))
		assert.Equal(t, "buy", r.PostForm.Get("side"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	body, err := c.Post(context.Background(), "/webapi/v3/orders.json", core.Params{"market": "btcusd", "side": "buy"})

	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, body)
}

func TestClient_UserAgentAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "graviex-go/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c, err := NewClient(&Config{
		BaseURL:   server.URL,
		Timeout:   time.Second,
		UserAgent: "graviex-go/test",
		Headers:   map[string]string{"X-Test": "yes"},
	})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(context.Background(), "/webapi/v3/markets.json", nil)
	assert.NoError(t, err)
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType core.ErrorType
		wantCode string
	}{
		{"bad_request", http.StatusBadRequest, `oops`, core.ErrorTypeBadRequest, ""},
		{"unauthorized", http.StatusUnauthorized, `denied`, core.ErrorTypeAuthentication, ""},
		{"forbidden", http.StatusForbidden, `denied`, core.ErrorTypeAuthentication, ""},
		{"not_found", http.StatusNotFound, `missing`, core.ErrorTypeNotFound, ""},
		{"rate_limit", http.StatusTooManyRequests, `slow down`, core.ErrorTypeRateLimit, ""},
		{"server_error", http.StatusBadGateway, `upstream`, core.ErrorTypeServerError, ""},
		{"teapot", http.StatusTeapot, `tea`, core.ErrorTypeUnknown, ""},
		{
			"bad_signature_envelope", http.StatusUnauthorized,
			`{"error":{"code":2005,"message":"Signature is incorrect."}}`,
			core.ErrorTypeAuthentication, "2005",
		},
		{
			"order_not_found_envelope", http.StatusBadRequest,
			`{"error":{"code":2004,"message":"Order not found."}}`,
			core.ErrorTypeNotFound, "2004",
		},
		{
			"create_order_envelope", http.StatusBadRequest,
			`{"error":{"code":2002,"message":"Failed to create order."}}`,
			core.ErrorTypeInvalidOrder, "2002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			body, err := c.Get(context.Background(), "/webapi/v3/order.json", nil)

			assert.Empty(t, body)
			require.Error(t, err)

			var reqErr *core.RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.wantType, reqErr.Type)
			assert.Equal(t, tt.status, reqErr.StatusCode)
			assert.Equal(t, tt.body, reqErr.Body)
			assert.Equal(t, tt.wantCode, reqErr.Code)
			assert.Equal(t, http.MethodGet, reqErr.Method)
			assert.Equal(t, "/webapi/v3/order.json", reqErr.Path)
			assert.True(t, core.IsStatusError(err))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(done)

	c, err := NewClient(&Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Get(context.Background(), "/webapi/v3/timestamp.json", nil)
	require.Error(t, err)
	assert.True(t, core.IsTimeoutError(err), "got %v", err)
	assert.False(t, core.IsStatusError(err))
}

func TestClient_ContextDeadline(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(done)

	c := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/webapi/v3/timestamp.json", nil)
	require.Error(t, err)
	assert.True(t, core.IsTimeoutError(err), "got %v", err)
}

func TestClient_ContextCanceled(t *testing.T) {
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(done)

	c := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := c.Get(ctx, "/webapi/v3/timestamp.json", nil)
	require.Error(t, err)
	assert.True(t, core.IsCanceledError(err), "got %v", err)
	assert.False(t, core.IsNetworkError(err))
	assert.True(t, core.IsErrorCode(err, core.ErrCodeCanceled))
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url)
	_, err := c.Get(context.Background(), "/webapi/v3/timestamp.json", nil)

	require.Error(t, err)
	assert.True(t, core.IsNetworkError(err), "got %v", err)
	assert.False(t, core.IsStatusError(err))
}

func TestClient_NoRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Get(context.Background(), "/webapi/v3/markets.json", nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_UnsupportedMethod(t *testing.T) {
	c := newTestClient(t, "https://graviex.net")
	_, err := c.Do(context.Background(), http.MethodDelete, "/webapi/v3/order.json", nil)
	assert.ErrorIs(t, err, core.ErrUnsupportedMethod)
}

func TestClient_Closed(t *testing.T) {
	c, err := NewClient(&Config{BaseURL: "https://graviex.net", Timeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Get(context.Background(), "/webapi/v3/markets.json", nil)
	assert.ErrorIs(t, err, core.ErrClientClosed)
}

func TestClient_LogsPathOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	c := newTestClient(t, server.URL, WithLogger(logger))
	_, err := c.Get(context.Background(), "/webapi/v3/members/me.json", core.Params{
		"access_key": "PUBKEY",
		"signature":  "deadbeef",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "/webapi/v3/members/me.json")
	assert.NotContains(t, out, "PUBKEY")
	assert.NotContains(t, out, "deadbeef")
}

func TestStatusErrorType(t *testing.T) {
	assert.Equal(t, core.ErrorTypeServerError, StatusErrorType(500))
	assert.Equal(t, core.ErrorTypeServerError, StatusErrorType(503))
	assert.Equal(t, core.ErrorTypeRateLimit, StatusErrorType(429))
	assert.Equal(t, core.ErrorTypeAuthentication, StatusErrorType(401))
	assert.Equal(t, core.ErrorTypeAuthentication, StatusErrorType(403))
	assert.Equal(t, core.ErrorTypeBadRequest, StatusErrorType(400))
	assert.Equal(t, core.ErrorTypeNotFound, StatusErrorType(404))
	assert.Equal(t, core.ErrorTypeUnknown, StatusErrorType(302))
}
