package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	defaultRequestTimeout    = 5 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultIdleTimeout       = 30 * time.Second
)

// A ServerConfig sets the server address and timeouts.
// Zero timeouts take the defaults.
type ServerConfig struct {
	Addr              string
	RequestTimeout    time.Duration
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

func (c *ServerConfig) normalize() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
}

type HTTPServer struct {
	httpServer *http.Server
}

func NewHTTPServer(cfg ServerConfig, handler http.Handler) HTTPServer {
	cfg.normalize()
	handler = http.TimeoutHandler(handler, cfg.RequestTimeout, "unavailable")
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return HTTPServer{s}
}

// Run serves until Close. stopFn is called when the server stops
// for any reason.
func (s HTTPServer) Run(stopFn context.CancelFunc) {
	const op = "HTTPServer.Run"
	log := slog.With("op", op)

	defer stopFn()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		log.Error("failed to listen", "addr", s.httpServer.Addr, "err", err)
		return
	}
	log.Info("http server is listening", "addr", ln.Addr().String())

	err = s.httpServer.Serve(ln)
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		log.Error("unexpected servers shutdown", "err", err)
	}
}

func (s HTTPServer) Close(ctx context.Context) {
	const op = "HTTPServer.Close"
	log := slog.With("op", op)

	log.Info("closing http server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		log.Error("failed to shutdown gracefully", "err", err)
	}
	log.Info("http server is closed")
}
