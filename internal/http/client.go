// Package http is the resty based transport used by sessions. GET
// parameters travel on the query string and POST parameters as an
// application/x-www-form-urlencoded body. Requests are never retried.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"graviex/pkg/core"
)

type Client struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

type Config struct {
	BaseURL   string            `validate:"required,url"`
	Timeout   time.Duration     `validate:"min=1ms"`
	UserAgent string            `validate:"omitempty"`
	Headers   map[string]string `validate:"omitempty"`
}

type Option func(*Client)

// WithLogger sets the logger used by the request and response middlewares.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("invalid config: config is required")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(0)
	if config.UserAgent != "" {
		client.SetHeader("User-Agent", config.UserAgent)
	}
	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	// Only the path is logged: signed GETs carry access_key and signature
	// on the query string.
	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		c.logger.Debug().
			Str("method", req.Method).
			Str("path", redact(req.URL)).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		c.logger.Debug().
			Str("method", resp.Request.Method).
			Str("path", redact(resp.Request.URL)).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	c.client = client
	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Get sends params on the query string and returns the body of a 2xx reply.
func (c *Client) Get(ctx context.Context, path string, params core.Params) (string, error) {
	return c.Do(ctx, http.MethodGet, path, params)
}

// Post sends params as a form body and returns the body of a 2xx reply.
func (c *Client) Post(ctx context.Context, path string, params core.Params) (string, error) {
	return c.Do(ctx, http.MethodPost, path, params)
}

// Do issues one request. Failures are returned as *core.RequestError, except
// for a closed client or an unsupported method.
func (c *Client) Do(ctx context.Context, method, path string, params core.Params) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", core.ErrClientClosed
	}

	req := c.client.R().SetContext(ctx)

	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		if len(params) > 0 {
			req.SetQueryParams(params)
		}
		resp, err = req.Get(path)
	case http.MethodPost:
		req.SetFormData(params)
		resp, err = req.Post(path)
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedMethod, method)
	}

	if err != nil {
		reqErr := core.NewTransportError(method, path, classifyTransportError(ctx, err), err)
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Str("type", reqErr.Type.String()).
			Msg("http request failed")
		return "", reqErr
	}

	body := resp.String()
	if !resp.IsSuccess() {
		status := resp.StatusCode()
		reqErr := core.NewStatusError(method, path, StatusErrorType(status), status, body).
			ApplyAPIError(resp.Bytes())
		c.logger.Warn().
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Str("code", reqErr.Code).
			Msg("http request rejected")
		return "", reqErr
	}

	return body, nil
}

// StatusErrorType maps a non-2xx status code to an error type.
func StatusErrorType(statusCode int) core.ErrorType {
	switch {
	case statusCode >= 500:
		return core.ErrorTypeServerError
	case statusCode == http.StatusTooManyRequests:
		return core.ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return core.ErrorTypeAuthentication
	case statusCode == http.StatusBadRequest:
		return core.ErrorTypeBadRequest
	case statusCode == http.StatusNotFound:
		return core.ErrorTypeNotFound
	default:
		return core.ErrorTypeUnknown
	}
}

func classifyTransportError(ctx context.Context, err error) core.ErrorType {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.ErrorTypeTimeout
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return core.ErrorTypeCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.ErrorTypeTimeout
	}
	return core.ErrorTypeNetwork
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
