package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	mw "github.com/rezkam/dayplan/internal/infrastructure/http/middleware"
	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
)

// Defaults for a zero Config. An empty host listens on every interface.
const (
	DefaultPort              = "8081"
	DefaultReadTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 15 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
	DefaultMaxBodyBytes      = 1 << 20
)

// Config describes the listener and request limits of the dayplan API.
// WriteTimeout does not bound /api/v1/stream, which clears its deadline
// after the websocket upgrade.
type Config struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	// Storage names the active backend in the health report.
	Storage string
}

func orDefault[T int | int64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (c Config) withDefaults() Config {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	c.ReadTimeout = orDefault(c.ReadTimeout, DefaultReadTimeout)
	c.WriteTimeout = orDefault(c.WriteTimeout, DefaultWriteTimeout)
	c.IdleTimeout = orDefault(c.IdleTimeout, DefaultIdleTimeout)
	c.ReadHeaderTimeout = orDefault(c.ReadHeaderTimeout, DefaultReadHeaderTimeout)
	c.MaxHeaderBytes = orDefault(c.MaxHeaderBytes, DefaultMaxHeaderBytes)
	c.MaxBodyBytes = orDefault(c.MaxBodyBytes, DefaultMaxBodyBytes)
	return c
}

// Addr is the host:port the server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Server serves /health openly and the planner API under /api behind API
// key authentication.
type Server struct {
	srv *http.Server
}

// NewServer wires api and authenticator into an instrumented server.
// Zero or negative limits in cfg fall back to the defaults.
func NewServer(api http.Handler, authenticator mw.KeyAuthenticator, cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{srv: &http.Server{
		Addr:              cfg.Addr(),
		Handler:           otelhttp.NewHandler(routes(api, authenticator, cfg), "dayplan-api"),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}}
}

type healthReport struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Storage string `json:"storage,omitempty"`
}

func routes(api http.Handler, authenticator mw.KeyAuthenticator, cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog, middleware.Recoverer)
	r.Use(mw.MaxBodyBytes(cfg.MaxBodyBytes))

	// Liveness only; storage reachability is checked at startup.
	health := healthReport{Status: "ok", Service: "dayplan", Storage: cfg.Storage}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, health)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(routeSpanName, mw.NewAuth(authenticator).Validate)
		r.Mount("/", api)
	})
	return r
}

// routeSpanName renames the request span to the matched route pattern, so
// /api/v1/items/{id} is one span name rather than one per item.
func routeSpanName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			return
		}
		if pattern := rctx.RoutePattern(); pattern != "" {
			trace.SpanFromContext(r.Context()).SetName(r.Method + " " + pattern)
		}
	})
}

// accessLog writes one structured line per API request. Health checks are
// too frequent to be worth logging.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// ListenAndServe blocks until Shutdown, then returns http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	slog.Info("dayplan API listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.InfoContext(ctx, "dayplan API shutting down")
	return s.srv.Shutdown(ctx)
}

// Handler exposes the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
