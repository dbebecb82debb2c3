package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"graviex/internal/circuitbreaker"
	httpclient "graviex/internal/http"
	"graviex/internal/metrics"
	"graviex/pkg/core"
	"graviex/pkg/signer"
)

// PathParam is the parameter Do substitutes into paths like /markets/{id}.json.
const PathParam = "id"

// State represents the lifecycle state of a Session.
type State int

const (
	// StateActive indicates a session that is ready to process requests.
	StateActive State = iota
	// StateClosed indicates a session that has been shut down and can no longer be used.
	StateClosed
)

// String returns the string representation of the State.
func (s State) String() string {
	return [...]string{"ACTIVE", "CLOSED"}[s]
}

// Session sends signed and unsigned requests to one Graviex host.
// It owns the signer (and so the tonce counter), the HTTP transport and
// the optional circuit breaker. Sessions are safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	config    *core.Config
	http      *httpclient.Client
	signer    *signer.Signer
	breaker   *circuitbreaker.Breaker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	state     State
	createdAt time.Time
	lastUsed  time.Time
}

// Option is a functional option for configuring a Session.
type Option func(*Options)

// Options holds configuration options for a Session.
type Options struct {
	Logger     zerolog.Logger
	Registerer prometheus.Registerer
	Tonce      *signer.Tonce
}

// WithLogger sets the logger. Its level is capped by Config.LogLevel.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetrics registers the session collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = reg
	}
}

// WithTonce shares a tonce generator, for instance between two sessions
// using the same key pair.
func WithTonce(t *signer.Tonce) Option {
	return func(o *Options) {
		o.Tonce = t
	}
}

// New creates a Session. The configuration is validated first. Signing is
// available only when the config carries credentials.
func New(config *core.Config, opts ...Option) (*Session, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	options := &Options{
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.Logger
	if config.LogLevel != "" {
		level, err := zerolog.ParseLevel(config.LogLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		logger = logger.Level(level)
	}
	logger = logger.With().Str("component", "session").Logger()

	var m *metrics.Metrics
	if options.Registerer != nil {
		var err error
		if m, err = metrics.New(options.Registerer); err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
	}

	client, err := httpclient.NewClient(&httpclient.Config{
		BaseURL:   config.BaseURL,
		Timeout:   config.Timeout,
		UserAgent: config.UserAgent,
	}, httpclient.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	var sgn *signer.Signer
	if config.HasCredentials() {
		signerOpts := []signer.Option{signer.WithLogger(logger)}
		if options.Tonce != nil {
			signerOpts = append(signerOpts, signer.WithTonce(options.Tonce))
		}
		if sgn, err = signer.New(*config.Credentials, signerOpts...); err != nil {
			return nil, fmt.Errorf("create signer: %w", err)
		}
		logger.Debug().Object("credentials", config.Credentials).Msg("signing enabled")
	}

	var cb *circuitbreaker.Breaker
	if config.CircuitBreakerEnabled {
		cb = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
		},
			circuitbreaker.WithLogger(logger),
			circuitbreaker.OnStateChange(func(_, to circuitbreaker.State) {
				m.SetBreakerState(int(to))
			}),
		)
	}

	now := time.Now()
	return &Session{
		config:    config,
		http:      client,
		signer:    sgn,
		breaker:   cb,
		metrics:   m,
		logger:    logger,
		state:     StateActive,
		createdAt: now,
		lastUsed:  now,
	}, nil
}

// SignAndDispatch signs params for method and path and sends them: on the
// query string for GET, as a form body for POST. It returns the raw body of
// a 2xx response.
func (s *Session) SignAndDispatch(ctx context.Context, method, path string, params core.Params) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if s.signer == nil {
		return "", core.ErrNoCredentials
	}

	signed, err := s.signer.Sign(method, path, params)
	if err != nil {
		return "", core.NewBadRequestError(method, path, err)
	}
	s.metrics.RecordSigned(method, path)

	return s.send(ctx, method, path, signed.Params)
}

// Dispatch sends params unsigned. No access_key, tonce or signature is added.
func (s *Session) Dispatch(ctx context.Context, method, path string, params core.Params) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if !core.IsSupportedMethod(method) {
		return "", core.NewBadRequestError(method, path, fmt.Errorf("%w: %q", core.ErrUnsupportedMethod, method))
	}

	return s.send(ctx, method, path, params.Clone())
}

// Execute runs req signed or unsigned according to req.RequireAuth.
func (s *Session) Execute(ctx context.Context, req *core.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("request is required")
	}
	if req.RequireAuth {
		return s.SignAndDispatch(ctx, req.Method, req.Path, req.Params)
	}
	return s.Dispatch(ctx, req.Method, req.Path, req.Params)
}

// Do executes op with its catalogued method, path and signing flag. For
// paths carrying an id placeholder the value is taken from params[PathParam]
// and removed from the sent parameters.
func (s *Session) Do(ctx context.Context, op core.Operation, params core.Params) (string, error) {
	req, err := BuildRequest(op, params)
	if err != nil {
		return "", err
	}
	return s.Execute(ctx, req)
}

// BuildRequest resolves op into a request without sending it.
func BuildRequest(op core.Operation, params core.Params) (*core.Request, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("unknown operation %d", op)
	}

	ep := op.Endpoint()
	working := params.Clone()

	id := ""
	if ep.HasPathID() {
		id = working[PathParam]
		if id == "" {
			return nil, core.NewBadRequestError(ep.Method, ep.Resolve(""),
				fmt.Errorf("%s requires parameter %q", op, PathParam))
		}
		delete(working, PathParam)
	}

	return core.NewRequest(ep.Method, ep.Resolve(id)).
		SetParams(working).
		SetRequireAuth(ep.Signed), nil
}

func (s *Session) send(ctx context.Context, method, path string, params core.Params) (string, error) {
	if s.breaker != nil && !s.breaker.Allow() {
		s.metrics.RecordBreakerRejection()
		return "", fmt.Errorf("%s %s: %w", method, path, core.ErrCircuitBreakerOpen)
	}

	s.touch()
	start := time.Now()
	body, err := s.http.Do(ctx, method, path, params)
	elapsed := time.Since(start)

	if s.breaker != nil {
		s.breaker.RecordError(err)
	}
	s.metrics.ObserveRequest(method, path, outcome(err), elapsed)

	if err != nil {
		return "", err
	}
	return body, nil
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	var reqErr *core.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Type.String()
	}
	return "error"
}

func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateClosed {
		return core.ErrClientClosed
	}
	return nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// Close shuts down the transport. Further calls return core.ErrClientClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	return s.http.Close()
}

// State returns the current lifecycle state of the session.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Config returns the configuration used to create the session.
func (s *Session) Config() *core.Config {
	return s.config
}

// CanSign reports whether the session was configured with a key pair.
func (s *Session) CanSign() bool {
	return s.signer != nil
}

// Signer returns the signer, or nil when no credentials are configured.
func (s *Session) Signer() *signer.Signer {
	return s.signer
}

// BreakerState returns the circuit breaker state. A disabled breaker is
// always reported closed.
func (s *Session) BreakerState() circuitbreaker.State {
	if s.breaker == nil {
		return circuitbreaker.StateClosed
	}
	return s.breaker.State()
}

// CreatedAt returns the timestamp when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// LastUsed returns the timestamp of the last dispatched request.
func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}
