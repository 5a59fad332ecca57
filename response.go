package hyperfetch

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyp3rd/hyperfetch/pkg/cache"
)

// Source identifies which tier produced a Response.
type Source string

const (
	// SourceMemory marks a hit served from the in-process cache.
	SourceMemory Source = "memory"
	// SourceRemote marks a buffered hit served from the distributed cache.
	SourceRemote Source = "remote"
	// SourceRemoteStream marks a replayed stream served from the distributed cache.
	SourceRemoteStream Source = "remote-stream"
	// SourceInflight marks a result shared with a concurrent identical request.
	SourceInflight Source = "inflight"
	// SourceNetwork marks a response fetched from the origin.
	SourceNetwork Source = "network"
	// SourcePassthrough marks a response fetched with the enhanced path disabled.
	SourcePassthrough Source = "passthrough"
)

// Response is the result of a Fetch call. Body is always non-nil and must be
// closed by the caller. For streamed responses Body delivers bytes as the
// origin produces them; for cached and buffered responses it reads from
// memory.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	Source     Source
}

// RequestOptions carries the per-request knobs. The zero value issues a plain
// GET with no extra headers.
type RequestOptions struct {
	Method  string
	Header  http.Header
	Body    io.Reader
	Timeout time.Duration
}

func (opts *RequestOptions) method() string {
	if opts == nil || opts.Method == "" {
		return http.MethodGet
	}

	return strings.ToUpper(opts.Method)
}

// newValueResponse wraps a cached value in a Response backed by an in-memory
// reader.
func newValueResponse(value *cache.Value, source Source) *Response {
	return &Response{
		StatusCode: value.StatusCode,
		Header:     value.HTTPHeader(),
		Body:       io.NopCloser(bytes.NewReader(value.Body)),
		Source:     source,
	}
}
