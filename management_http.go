package hyperfetch

import (
	"context"
	"net"
	"time"

	fiber "github.com/gofiber/fiber/v3"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/hyperfetch/internal/sentinel"
	"github.com/hyp3rd/hyperfetch/pkg/stats"
)

// ManagementHTTPOption configures the management HTTP server.
type ManagementHTTPOption func(*ManagementHTTPServer)

// ManagementHTTPServer holds Fiber app and settings.
type ManagementHTTPServer struct {
	addr         string
	app          *fiber.App
	readTimeout  time.Duration
	writeTimeout time.Duration
	authFunc     func(fiber.Ctx) error
	ln           net.Listener
	started      bool
}

// WithMgmtAuth sets an auth function (return error to block).
func WithMgmtAuth(fn func(fiber.Ctx) error) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.authFunc = fn }
}

// WithMgmtReadTimeout sets read timeout.
func WithMgmtReadTimeout(d time.Duration) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.readTimeout = d }
}

// WithMgmtWriteTimeout sets write timeout.
func WithMgmtWriteTimeout(d time.Duration) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.writeTimeout = d }
}

const (
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// NewManagementHTTPServer builds an HTTP server holder (lazy start).
func NewManagementHTTPServer(addr string, opts ...ManagementHTTPOption) *ManagementHTTPServer {
	srv := &ManagementHTTPServer{
		addr:         addr,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts { // apply options
		opt(srv)
	}

	srv.app = fiber.New(fiber.Config{
		ReadTimeout:  srv.readTimeout,
		WriteTimeout: srv.writeTimeout,
	})

	return srv
}

// managementFetcher is the introspection surface the handlers consume.
type managementFetcher interface {
	Stats() stats.Stats
	Config() Config
	Purge()
	MemoryLen() int
	MemoryCapacity() int
	InflightLen() int
}

// Start launches listener (idempotent). Caller provides the fetcher for
// handler wiring.
func (s *ManagementHTTPServer) Start(ctx context.Context, mf managementFetcher) error {
	if s.started { // idempotent
		return nil
	}

	s.mountRoutes(mf)

	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return ewrap.Wrap(err, "mgmt listen")
	}

	s.ln = ln

	go func() { // serve in background (optional server errors are ignored intentionally)
		err = s.app.Listener(ln)
		if err != nil { // optional server; log hook could be added in future
			_ = err
		}
	}()

	s.started = true

	return nil
}

// Address returns the bound address (useful when passing ":0" for ephemeral port). Empty if not started yet.
func (s *ManagementHTTPServer) Address() string {
	if s.ln == nil {
		return ""
	}

	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *ManagementHTTPServer) Shutdown(ctx context.Context) error {
	if !s.started {
		return nil
	}

	ch := make(chan error, 1)

	go func() {
		ch <- s.app.Shutdown()
	}()

	select {
	case <-ctx.Done():
		return sentinel.ErrMgmtHTTPShutdownTimeout
	case err := <-ch:
		return err
	}
}

// mountRoutes.
func (s *ManagementHTTPServer) mountRoutes(mf managementFetcher) {
	useAuth := s.wrapAuth
	s.registerBasic(useAuth, mf)
	s.registerControl(useAuth, mf)
}

// wrapAuth returns an auth-wrapped handler if authFunc provided.
func (s *ManagementHTTPServer) wrapAuth(handler fiber.Handler) fiber.Handler { //nolint:ireturn
	if s.authFunc == nil {
		return handler
	}

	return func(fiberCtx fiber.Ctx) error {
		authErr := s.authFunc(fiberCtx)
		if authErr != nil {
			return authErr
		}

		return handler(fiberCtx)
	}
}

func (s *ManagementHTTPServer) registerBasic(useAuth func(fiber.Handler) fiber.Handler, mf managementFetcher) { //nolint:ireturn
	s.app.Get("/health", useAuth(func(fiberCtx fiber.Ctx) error { return fiberCtx.SendString("ok") }))
	s.app.Get("/stats", useAuth(func(fiberCtx fiber.Ctx) error {
		snapshot := mf.Stats()

		return fiberCtx.JSON(fiber.Map{
			"counters":       snapshot,
			"memoryLen":      mf.MemoryLen(),
			"memoryCapacity": mf.MemoryCapacity(),
			"inflight":       mf.InflightLen(),
		})
	}))
	s.app.Get("/config", useAuth(func(fiberCtx fiber.Ctx) error {
		cfg := mf.Config()

		return fiberCtx.JSON(fiber.Map{
			"concurrency":         cfg.Concurrency,
			"cacheTTL":            cfg.CacheTTL.String(),
			"enhanced":            cfg.Enhanced,
			"streamDetectBuffer":  cfg.StreamDetectBuffer,
			"streamBufferMax":     cfg.StreamBufferMax,
			"streamMaxChunks":     cfg.StreamMaxChunks,
			"streamMaxTotalBytes": cfg.StreamMaxTotalBytes,
			"dedupWriteRequests":  cfg.DedupWriteRequests,
			"requestTimeout":      cfg.RequestTimeout.String(),
		})
	}))
}

func (s *ManagementHTTPServer) registerControl(useAuth func(fiber.Handler) fiber.Handler, mf managementFetcher) { //nolint:ireturn
	s.app.Post("/purge", useAuth(func(fiberCtx fiber.Ctx) error {
		mf.Purge()

		return fiberCtx.SendStatus(fiber.StatusOK)
	}))
}
