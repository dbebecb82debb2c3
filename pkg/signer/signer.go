// Package signer implements the Graviex request signing protocol.
//
// A signed request carries three extra parameters: access_key (the public
// key), tonce (a freshness token) and signature, the lowercase hex
// HMAC-SHA256 of
//
//	METHOD|PATH|CANONICAL_QUERY
//
// keyed by the secret key, where CANONICAL_QUERY is the parameter set,
// including access_key and tonce, rendered as key=value pairs sorted by key
// and joined with '&'.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"graviex/pkg/core"
)

// Signed is the output of signing one request.
type Signed struct {
	// Params holds the caller parameters plus access_key, tonce and signature.
	Params core.Params
	// Tonce is the freshness token embedded in Params.
	Tonce string
	// Query is the canonical query the signature was computed over.
	Query string
	// Message is the exact string passed to the HMAC.
	Message   string
	Signature string
}

// Signer turns logical requests into authenticated parameter sets.
// It is safe for concurrent use; the only mutable state is its Tonce.
type Signer struct {
	creds  core.Credentials
	tonce  *Tonce
	logger zerolog.Logger
}

// Option is a functional option for configuring a Signer.
type Option func(*Signer)

// WithTonce shares or replaces the tonce generator.
func WithTonce(t *Tonce) Option {
	return func(s *Signer) {
		s.tonce = t
	}
}

// WithLogger sets the logger used for debug output. Secrets are never logged.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Signer) {
		s.logger = l
	}
}

// New creates a Signer for the key pair. Both keys must be non-empty.
func New(creds core.Credentials, opts ...Option) (*Signer, error) {
	if creds.AccessKey == "" || creds.SecretKey == "" {
		return nil, core.ErrNoCredentials
	}

	s := &Signer{
		creds:  creds,
		tonce:  NewTonce(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessKey returns the public key injected into every signed request.
func (s *Signer) AccessKey() string {
	return s.creds.AccessKey
}

// Tonce returns the generator used by Sign.
func (s *Signer) Tonce() *Tonce {
	return s.tonce
}

// Sign authenticates params for method and path with a fresh tonce.
// Caller values under access_key, tonce or signature are overwritten.
func (s *Signer) Sign(method, path string, params core.Params) (*Signed, error) {
	if err := checkTarget(method, path); err != nil {
		return nil, err
	}
	return s.sign(method, path, params, s.tonce.Next()), nil
}

// SignWithTonce is Sign with a caller-chosen tonce. The counter is untouched.
func (s *Signer) SignWithTonce(method, path string, params core.Params, tonce string) (*Signed, error) {
	if err := checkTarget(method, path); err != nil {
		return nil, err
	}
	return s.sign(method, path, params, tonce), nil
}

func (s *Signer) sign(method, path string, params core.Params, tonce string) *Signed {
	working := params.Clone()
	working[core.ParamTonce] = tonce
	working[core.ParamAccessKey] = s.creds.AccessKey

	// A caller supplied signature is still part of the signed query; only
	// its value in the outgoing set is replaced.
	query := Canonicalize(working)
	message := Message(method, path, query)
	signature := HMAC(s.creds.SecretKey, message)
	working[core.ParamSignature] = signature

	s.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("tonce", tonce).
		Int("params", len(params)).
		Msg("signed request")

	return &Signed{
		Params:    working,
		Tonce:     tonce,
		Query:     query,
		Message:   message,
		Signature: signature,
	}
}

// Canonicalize renders params as key=value pairs sorted by key and joined
// with '&'. Values are not escaped. An empty set yields "".
func Canonicalize(params core.Params) string {
	keys := slices.Sorted(maps.Keys(params))

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Message builds the string the signature is computed over.
func Message(method, path, query string) string {
	return method + "|" + path + "|" + query
}

// HMAC returns the lowercase hex HMAC-SHA256 of message keyed by secret.
func HMAC(secret, message string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches message under secret,
// comparing in constant time.
func Verify(secret, message, signature string) bool {
	return hmac.Equal([]byte(HMAC(secret, message)), []byte(signature))
}

func checkTarget(method, path string) error {
	if !core.IsSupportedMethod(method) {
		return fmt.Errorf("%w: %q", core.ErrUnsupportedMethod, method)
	}
	if path == "" || path[0] != '/' || strings.ContainsAny(path, "?#") {
		return fmt.Errorf("%w: %q", core.ErrInvalidPath, path)
	}
	return nil
}
