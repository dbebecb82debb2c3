package core

import (
	"maps"
	"net/http"
)

// Reserved parameter names injected by the signer. A caller value under any
// of these keys is overwritten on signed requests.
const (
	ParamAccessKey = "access_key"
	ParamTonce     = "tonce"
	ParamSignature = "signature"
)

// ReservedKeys lists the parameter names owned by the signer.
var ReservedKeys = []string{ParamAccessKey, ParamTonce, ParamSignature}

// IsReservedKey reports whether key is injected by the signer.
func IsReservedKey(key string) bool {
	switch key {
	case ParamAccessKey, ParamTonce, ParamSignature:
		return true
	}
	return false
}

// Params is the request parameter set. Order is irrelevant; the signer
// sorts keys before use.
type Params map[string]string

// Clone returns an independent copy. A nil receiver yields an empty set.
func (p Params) Clone() Params {
	out := make(Params, len(p)+len(ReservedKeys))
	maps.Copy(out, p)
	return out
}

// Set stores value under key and returns the set for chaining.
func (p Params) Set(key, value string) Params {
	p[key] = value
	return p
}

// SetIf stores value only when it is non-empty.
func (p Params) SetIf(key, value string) Params {
	if value != "" {
		p[key] = value
	}
	return p
}

// Request is a logical call against one endpoint.
type Request struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Params      Params `json:"params,omitempty"`
	RequireAuth bool   `json:"require_auth"`
}

// NewRequest creates a request with an empty parameter set.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Params: make(Params),
	}
}

// SetParam sets a single parameter and returns the request for chaining.
func (r *Request) SetParam(key, value string) *Request {
	if r.Params == nil {
		r.Params = make(Params)
	}
	r.Params[key] = value
	return r
}

// SetParams merges params into the request.
func (r *Request) SetParams(params Params) *Request {
	if r.Params == nil {
		r.Params = make(Params)
	}
	maps.Copy(r.Params, params)
	return r
}

// SetRequireAuth marks the request as signed.
func (r *Request) SetRequireAuth(require bool) *Request {
	r.RequireAuth = require
	return r
}

// IsSupportedMethod reports whether method is one the API accepts.
func IsSupportedMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodPost
}
