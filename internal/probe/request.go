package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	"github.com/roach88/tutorprobe/internal/canon"
)

// Request describes one outbound HTTP call.
// Values are treated as immutable: the With* helpers return modified copies.
type Request struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is JSON-encoded when non-nil.
	Body any `json:"body,omitempty" yaml:"body,omitempty"`
}

// NewRequest returns a request with no headers or body.
// An empty method means GET.
func NewRequest(method, url string) Request {
	if method == "" {
		method = http.MethodGet
	}
	return Request{Method: strings.ToUpper(method), URL: url}
}

// WithHeader returns a copy of r with header name set to value.
func (r Request) WithHeader(name, value string) Request {
	headers := make(map[string]string, len(r.Headers)+1)
	maps.Copy(headers, r.Headers)
	headers[name] = value
	r.Headers = headers
	return r
}

// WithBearer returns a copy of r carrying "Authorization: Bearer <token>".
func (r Request) WithBearer(token string) Request {
	return r.WithHeader("Authorization", "Bearer "+token)
}

// WithBody returns a copy of r with the given JSON body.
func (r Request) WithBody(body any) Request {
	r.Body = body
	return r
}

// Header returns the value of header name, matched case-insensitively.
func (r Request) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// build converts r into an *http.Request bound to ctx.
func (r Request) build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		data, err := encodeBody(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, err
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// encodeBody prefers the canonical form so identical bodies are identical
// on the wire; arbitrary Go values fall back to encoding/json.
func encodeBody(v any) ([]byte, error) {
	if data, err := canon.Marshal(v); err == nil {
		return data, nil
	}
	return json.Marshal(v)
}
