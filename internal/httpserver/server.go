package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultDrainGrace is how long in-flight requests may finish on their own
// during shutdown before their contexts are cancelled.
const DefaultDrainGrace = 2 * time.Second

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner          *http.Server
	drainGrace     time.Duration
	cancelRequests context.CancelFunc

	mu   sync.Mutex
	addr net.Addr
}

// Option customises the Server.
type Option func(*Server)

// WithWriteTimeout bounds the time spent on a single request. Uploads read
// their body inside this window, so it has to cover the slowest upload.
// Streaming handlers clear their own deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.inner.WriteTimeout = d
		}
	}
}

// WithLogger routes the server's internal errors to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.inner.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelWarn)
		}
	}
}

// WithDrainGrace sets how long shutdown waits before cancelling the contexts
// of requests that are still running, such as status streams.
func WithDrainGrace(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.drainGrace = d
		}
	}
}

// New constructs a server listening on the provided port.
func New(port int, handler http.Handler, opts ...Option) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       2 * time.Minute,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		drainGrace:     DefaultDrainGrace,
		cancelRequests: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.inner.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	return s.inner.Serve(ln)
}

// Addr returns the listening address, or "" before Start has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Requests still running after the drain grace see their context cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	timer := time.AfterFunc(s.drainGrace, s.cancelRequests)
	defer timer.Stop()

	err := s.inner.Shutdown(ctx)
	s.cancelRequests()
	return err
}
