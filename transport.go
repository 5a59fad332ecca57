package hyperfetch

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/hyp3rd/hyperfetch/internal/constants"
)

// Transport issues HTTP requests. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// newDefaultTransport builds a pooled client tuned for read-heavy upstream
// traffic. Per-request deadlines ride on the request context, never on
// Client.Timeout, which would cut long-lived streams short of their own
// deadline handling.
func newDefaultTransport() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: constants.HTTPDialTimeout,
			}).DialContext,
			MaxIdleConns:        constants.HTTPMaxIdleConns,
			MaxIdleConnsPerHost: constants.HTTPMaxIdleConnsPerHost,
			IdleConnTimeout:     constants.HTTPIdleConnTimeout,
			TLSHandshakeTimeout: constants.HTTPTLSHandshakeTimeout,
		},
	}
}

// cancelBody releases the request's timeout context when the body is closed,
// so the deadline keeps covering the body for exactly as long as it lives.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()

	return err
}
