package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/dayplan/internal/application/auth"
	"github.com/rezkam/dayplan/internal/application/lapse"
	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/application/profile"
	"github.com/rezkam/dayplan/internal/config"
	httpserver "github.com/rezkam/dayplan/internal/infrastructure/http"
	"github.com/rezkam/dayplan/internal/infrastructure/http/handler"
	"github.com/rezkam/dayplan/internal/infrastructure/notify"
	"github.com/rezkam/dayplan/internal/infrastructure/observability"
	"github.com/rezkam/dayplan/internal/infrastructure/realtime"
	"github.com/rezkam/dayplan/internal/storage"
)

// defaultShutdownTimeout applies when DAYPLAN_SHUTDOWN_TIMEOUT is unset.
const defaultShutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		// slog may not be initialised yet if config failed.
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}

	// Root context for normal operation; cancelled on SIGTERM/SIGINT.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obsCfg := observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
	}

	lp, logger, err := observability.InitLogger(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownProvider("logger", lp.Shutdown)
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownProvider("tracer", tp.Shutdown)

	mp, err := observability.InitMeterProvider(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownProvider("meter", mp.Shutdown)

	slog.InfoContext(ctx, "starting dayplan service", "storage", cfg.Storage.Kind())

	loc, err := cfg.Planner.Location()
	if err != nil {
		return err
	}

	backend, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	if backend.CanWatch() {
		// Edits made by other processes sharing the directory reach live streams too.
		if err := backend.Watch(ctx, hub.Publish); err != nil {
			_ = backend.Close()
			return fmt.Errorf("failed to watch storage: %w", err)
		}
	}

	var (
		notifier planner.Notifier
		relay    *notify.Relay
	)
	if cfg.Notify.Enabled() {
		relay = notify.NewRelay(notify.NewPushClient(notify.PushConfig{
			Endpoint: cfg.Notify.Endpoint,
			AppID:    cfg.Notify.AppID,
			APIKey:   cfg.Notify.APIKey,
			Segments: cfg.Notify.Segments,
			Timeout:  cfg.Notify.Timeout,
		}), notify.RelayConfig{QueueSize: cfg.Notify.QueueSize})
		notifier = relay
		slog.InfoContext(ctx, "push notifications enabled", "segments", cfg.Notify.Segments)
	}

	plannerService := planner.NewService(backend, hub, notifier, planner.Config{
		Location:     loc,
		MaxRangeDays: cfg.Planner.MaxRangeDays,
	})
	profileService := profile.NewService(backend)

	authenticator := auth.NewAuthenticator(ctx, backend, auth.Config{
		OperationTimeout: cfg.Auth.OperationTimeout,
		TouchQueueSize:   cfg.Auth.TouchQueueSize,
	})

	var scheduler *lapse.Scheduler
	if notifier != nil && !cfg.Sweep.Disabled {
		sweeper := lapse.NewSweeper(backend, notifier, loc, time.Now)
		scheduler, err = lapse.NewScheduler(sweeper, cfg.Sweep.Schedule, loc)
		if err != nil {
			_ = backend.Close()
			return fmt.Errorf("failed to schedule lapse sweep: %w", err)
		}
		scheduler.Start()
	}

	components := make([]component, 0, 3)
	if scheduler != nil {
		components = append(components, component{name: "lapse sweeper", svc: scheduler})
	}
	if relay != nil {
		components = append(components, component{name: "notification relay", svc: relay})
	}
	components = append(components, component{name: "authenticator", svc: authenticator})

	apiHandler := handler.NewRouter(handler.NewPlanHandler(plannerService, profileService, hub, handler.Config{
		StreamPingInterval: cfg.Stream.PingInterval,
		StreamWriteTimeout: cfg.Stream.WriteTimeout,
	}))
	server := httpserver.NewServer(apiHandler, authenticator, httpserver.Config{
		Host:              cfg.HTTP.Host,
		Port:              cfg.HTTP.Port,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		Storage:           cfg.Storage.Kind(),
	})

	errResult := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")

		// The main context is already cancelled; shutdown gets a fresh deadline.
		shutdownCtx, cancel := newShutdownContext(cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "HTTP server shutdown incomplete", "error", err)
		}
		newCleanup(shutdownCtx, components, backend)()
		return nil
	case err := <-errResult:
		shutdownCtx, cancel := newShutdownContext(cfg.ShutdownTimeout)
		defer cancel()

		newCleanup(shutdownCtx, components, backend)()
		return err
	}
}

// newShutdownContext creates a fresh context with timeout for graceful shutdown operations.
func newShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

// shutdownProvider flushes a telemetry provider, bounded so an unreachable
// collector cannot hang exit.
func shutdownProvider(name string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown provider", "provider", name, "error", err)
	}
}
