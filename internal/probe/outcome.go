package probe

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tutorprobe/internal/canon"
)

// Kind tags which Outcome variant is populated.
type Kind string

// Outcome kinds.
const (
	KindSuccess           Kind = "success"
	KindHTTPError         Kind = "http_error"
	KindConnectionRefused Kind = "connection_refused"
	KindTimeout           Kind = "timeout"
	KindUnknownFailure    Kind = "unknown_failure"
)

// Outcome is the classified result of one probe.
//
// StatusCode and Body are set for success and http_error.
// Message is set for connection_refused, timeout and unknown_failure.
type Outcome struct {
	Kind       Kind          `json:"kind"`
	StatusCode int           `json:"status_code,omitempty"`
	Body       *Body         `json:"body,omitempty"`
	Message    string        `json:"message,omitempty"`
	Elapsed    time.Duration `json:"-"`
}

// Success builds a success outcome.
func Success(status int, body *Body) Outcome {
	return Outcome{Kind: KindSuccess, StatusCode: status, Body: body}
}

// HTTPError builds an http_error outcome.
func HTTPError(status int, body *Body) Outcome {
	return Outcome{Kind: KindHTTPError, StatusCode: status, Body: body}
}

// ConnectionRefused builds a connection_refused outcome.
func ConnectionRefused(message string) Outcome {
	return Outcome{Kind: KindConnectionRefused, Message: message}
}

// Timeout builds a timeout outcome.
func Timeout(message string) Outcome {
	return Outcome{Kind: KindTimeout, Message: message}
}

// UnknownFailure builds an unknown_failure outcome.
func UnknownFailure(message string) Outcome {
	return Outcome{Kind: KindUnknownFailure, Message: message}
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Body is a captured response body.
type Body struct {
	// Raw is the body as received.
	Raw string `json:"raw"`

	// Data holds the decoded value when the response declared a JSON
	// content type and the body parsed. Numbers decode as json.Number.
	Data any `json:"data,omitempty"`
}

// TextBody returns a body with no structured form.
func TextBody(raw string) *Body {
	return &Body{Raw: raw}
}

// JSONBody decodes raw as JSON; on failure only Raw is kept.
func JSONBody(raw string) *Body {
	b := &Body{Raw: raw}
	if v, ok := decodeJSON([]byte(raw)); ok {
		b.Data = v
	}
	return b
}

// Structured reports whether the body decoded as JSON.
func (b *Body) Structured() bool {
	return b != nil && b.Data != nil
}

// String renders the body compactly: canonical JSON for structured bodies,
// the raw text otherwise.
func (b *Body) String() string {
	if b == nil {
		return ""
	}
	if b.Data != nil {
		if data, err := canon.Marshal(b.Data); err == nil {
			return string(data)
		}
	}
	return b.Raw
}

// Lookup resolves a dotted path ("token", "data.token", "items.0.id")
// inside the structured body.
func (b *Body) Lookup(path string) (any, bool) {
	if !b.Structured() {
		return nil, false
	}
	cur := b.Data
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, ok := parseIndex(part)
			if !ok || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// parseIndex accepts only a plain non-negative decimal that fits in an int.
func parseIndex(s string) (int, bool) {
	if s == "" || strings.ContainsAny(s, "+-") {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// decodeBody keeps raw text and adds the decoded form for JSON content types.
func decodeBody(contentType string, raw []byte) *Body {
	if isJSONContentType(contentType) {
		return JSONBody(string(raw))
	}
	return TextBody(string(raw))
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func decodeJSON(raw []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	// Reject trailing content such as `{"a":1} junk`.
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, v != nil
}
