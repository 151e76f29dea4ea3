package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"elnreport/internal/database"
	"elnreport/internal/database/migration"
	"elnreport/internal/deploy"
	handlers "elnreport/internal/http/handler"
	"elnreport/internal/http/middleware"
	"elnreport/internal/logging"
	"elnreport/internal/otel"
	"elnreport/internal/render"
	"elnreport/internal/repository/postgres"
	"elnreport/internal/schema"
	"elnreport/internal/service"
	"elnreport/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// PORT is read here, at process start, never at image build time.
	addr, err := deploy.ResolveListenAddr(cfg.Host, cfg.Port)
	if err != nil {
		logger.Error().Err(err).Str("port", cfg.Port).Msg("cannot resolve listen address")
		return err
	}

	shutdownTracing, err := otel.Init(ctx, logging.Component(logger, "otel"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	registry := schema.NewRegistry(schema.DefaultFiles(cfg.Report.SchemaDir), logging.Component(logger, "schema"))
	_ = registry.CheckDir(cfg.Report.SchemaDir)
	renderer := render.New(cfg.Report.LogoPath, logging.Component(logger, "render"),
		render.WithUnicodeFont(cfg.Report.FontPath))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	opts := []service.Option{
		service.WithLogger(logging.Component(logger, "service")),
		service.WithMetrics(metrics),
	}
	var pinger handlers.Pinger
	if cfg.ArchiveEnabled() {
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()
		if err := migration.EnsureMigrated(ctx, db, logging.Component(logger, "migration"), cfg.Database.Host); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		store, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
		opts = append(opts, service.WithArchive(store, postgres.NewReportPostgres(db), cfg.MinIO.PresignExpiry))
		pinger = db
		logger.Info().Str("bucket", cfg.MinIO.Bucket).Msg("report archive enabled")
	} else {
		logger.Info().Msg("report archive disabled; set DB_HOST and MINIO_ENDPOINT to enable it")
	}

	svc := service.NewConversionService(registry, renderer, opts...)

	app, err := newApp(svc, pinger, reg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", addr).Bool("logo", renderer.HasLogo()).Msg("listening")
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down")
		return app.ShutdownWithContext(sctx)
	})
	g.Go(func() error {
		return reloadOnHangup(gctx, registry)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}

// reloadOnHangup re-reads the schema files on SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, registry *schema.Registry) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			registry.Reload()
		}
	}
}

func newApp(svc service.ConversionService, db handlers.Pinger, reg *prometheus.Registry) (*fiber.App, error) {
	maxUpload := cfg.Report.MaxUploadBytes
	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             maxUpload + 1<<20,
		DisableStartupMessage: true,
	})

	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	app.Use(middleware.RequestLogger(logging.Component(logger, "http")))
	app.Use(prom.Handler())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		ExposeHeaders: "Content-Disposition, " + handlers.ReportIDHeader + ", " + middleware.RequestIDHeader,
	}))

	handlers.RegisterRoutes(app, svc, handlers.RouteConfig{
		DB:             db,
		Gatherer:       reg,
		MaxUploadBytes: int64(maxUpload),
		Logger:         logging.Component(logger, "convert"),
	})
	return app, nil
}
