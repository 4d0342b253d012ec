package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/api"
	audithook "github.com/xraph/tuition/audit_hook"
	"github.com/xraph/tuition/host/memhost"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/internal/config"
	"github.com/xraph/tuition/internal/logger"
	"github.com/xraph/tuition/observability"
	"github.com/xraph/tuition/observability/prom"
	sentryhook "github.com/xraph/tuition/sentry_hook"
)

const shutdownTimeout = 15 * time.Second

var serveDemo bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the recurrence scheduler",
	Long: `Serve starts the subscription engine with its scheduler loop and exposes
the REST API, /health and /metrics.

Sales, invoices and the training catalog live in an in-process host. Use
--demo to seed it with a sample product, offer, session and customer.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDemo, "demo", false, "seed the in-process host with a sample catalog")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.App.Env)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	erp := memhost.New(memhost.WithReferencer(st))
	if serveDemo {
		seedDemo(erp, log)
	}

	opts, err := engineOptions(cfg, log)
	if err != nil {
		_ = st.Close()
		return err
	}

	var middleware []fiber.Handler
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.App.Env,
			EnableTracing:    cfg.Sentry.TracesSampleRate > 0,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			log.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			opts = append(opts, tuition.WithPlugin(sentryhook.New()))
			middleware = append(middleware, sentryfiber.New(sentryfiber.Options{Repanic: true}))
			log.Info("sentry enabled", "environment", cfg.App.Env)
		}
	}

	eng, err := tuition.New(st, tuition.Host{
		Sales:    erp,
		Invoices: erp,
		Parties:  erp,
		Catalog:  erp,
	}, opts...)
	if err != nil {
		_ = st.Close()
		return err
	}
	if err := eng.Start(ctx); err != nil {
		_ = st.Close()
		return err
	}

	appOpts := []api.Option{
		api.WithBasePath(cfg.HTTP.BasePath),
		api.WithLogger(log),
		api.WithMiddleware(middleware...),
	}
	if !cfg.Metrics.Enabled {
		appOpts = append(appOpts, api.WithMetricsHandler(nil))
	}
	app := api.NewApp(eng, appOpts...)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr, "base_path", cfg.HTTP.BasePath)
		errCh <- app.Listen(cfg.HTTP.Addr)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
		log.Error("http server stopped", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, err)
	}
	return serveErr
}

// engineOptions translates the engine section of cfg and registers the
// audit and metrics plugins.
func engineOptions(cfg config.Config, log *slog.Logger) ([]tuition.Option, error) {
	opts := []tuition.Option{
		tuition.WithLogger(log),
		tuition.WithPollInterval(cfg.Engine.PollInterval),
		tuition.WithPlugin(audithook.New(auditLog(log), audithook.WithLogger(log))),
	}

	if cfg.Engine.CronUser != "" {
		user, err := id.ParseUserID(cfg.Engine.CronUser)
		if err != nil {
			return nil, fmt.Errorf("engine.cron_user: %w", err)
		}
		opts = append(opts, tuition.WithCronUser(user))
	}

	if len(cfg.Engine.DefaultCharges) > 0 {
		charges := make([]id.ProductID, 0, len(cfg.Engine.DefaultCharges))
		for _, raw := range cfg.Engine.DefaultCharges {
			productID, err := id.ParseProductID(raw)
			if err != nil {
				return nil, fmt.Errorf("engine.default_charges: %w", err)
			}
			charges = append(charges, productID)
		}
		opts = append(opts, tuition.WithDefaultCharges(charges...))
	}

	if cfg.Metrics.Enabled {
		opts = append(opts, tuition.WithPlugin(observability.NewMetricsExtension(prom.New(nil))))
	}
	return opts, nil
}

// auditLog records audit events as structured log lines.
func auditLog(log *slog.Logger) audithook.Recorder {
	audit := log.With("channel", "audit")
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		audit.InfoContext(ctx, ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"category", ev.Category,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
			"reason", ev.Reason,
			"metadata", ev.Metadata,
		)
		return nil
	})
}
