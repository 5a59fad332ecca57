// Package cache provides the materialized response value shared by the cache
// tiers and the bounded LRU used as the in-process tier.
package cache

import (
	"net/http"
	"strings"

	"github.com/hyp3rd/hyperfetch/internal/constants"
)

// Value is a fully materialized HTTP response as the cache tiers store it:
// the complete body, a flattened header map, and the status code. A Value is
// owned by the tier holding it and treated as immutable once stored; use
// Clone when handing a copy to another tier.
type Value struct {
	Body       []byte            `json:"body"`
	Headers    map[string]string `json:"headers"`
	StatusCode int               `json:"statusCode"`
}

// Key derives the cache key for a request. Keys are case-sensitive,
// "<METHOD>:<url>", and computed once per logical request.
func Key(method, url string) string {
	return method + ":" + url
}

// StreamKey addresses the stream-form chunk list for a cache key.
func StreamKey(key string) string {
	return key + constants.StreamKeySuffix
}

// StreamMetaKey addresses the stream-form metadata for a cache key.
func StreamMetaKey(key string) string {
	return key + constants.StreamMetaKeySuffix
}

// Clone returns a deep copy of the value, decoupling body bytes and headers
// from the original so tiers never share mutable state.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}

	out := &Value{
		StatusCode: v.StatusCode,
		Body:       make([]byte, len(v.Body)),
		Headers:    make(map[string]string, len(v.Headers)),
	}

	copy(out.Body, v.Body)

	for name, val := range v.Headers {
		out.Headers[name] = val
	}

	return out
}

// Size returns the body size in bytes.
func (v *Value) Size() int {
	if v == nil {
		return 0
	}

	return len(v.Body)
}

// HTTPHeader expands the flattened header map back into an http.Header.
func (v *Value) HTTPHeader() http.Header {
	header := make(http.Header, len(v.Headers))
	for name, val := range v.Headers {
		header.Set(name, val)
	}

	return header
}

// FlattenHeader collapses an http.Header into the stored map form. Multiple
// values for a name are joined with ", " per the field folding convention.
func FlattenHeader(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for name, vals := range header {
		out[name] = strings.Join(vals, ", ")
	}

	return out
}
