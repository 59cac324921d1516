package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/rolfenpp/ChronoBit-API/internal/config"
	"github.com/rolfenpp/ChronoBit-API/internal/present/rest"
	authmiddleware "github.com/rolfenpp/ChronoBit-API/internal/present/rest/middleware"
	"github.com/rolfenpp/ChronoBit-API/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(configPath)
		if err != nil {
			return err
		}
		setupLogger(conf.Server.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, conf)
	},
}

func serve(ctx context.Context, conf config.Config) error {
	if conf.Server.EnableTrace {
		shutdown, err := telemetry.SetupTraceProvider(ctx, conf.Server.TraceEndpoint, "chronobit", version)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				slog.Warn("failed to flush traces", slog.String("error", err.Error()), slog.String("module", "main"))
			}
		}()
	}

	a, err := newApp(ctx, conf)
	if err != nil {
		return err
	}
	defer a.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("chronobit"))
	}

	handler := rest.NewHandler(a.claim, a.signal, authmiddleware.NewAuthMiddleware(a.auth), writeLimiter(conf))
	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(
			"server started",
			slog.String("listen", conf.Server.Listen),
			slog.String("storage", conf.Server.Storage),
			slog.String("module", "main"),
		)
		errCh <- e.Start(conf.Server.Listen)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// writeLimiter returns nil when rate limiting is disabled.
func writeLimiter(conf config.Config) echo.MiddlewareFunc {
	if conf.Server.RateLimit <= 0 {
		return nil
	}
	return rest.RateLimiter(conf.Server.RateLimit, conf.Server.RateBurst)
}
