package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"elnreport/docs"
	"elnreport/internal/service"
)

// RouteConfig carries the non-service dependencies of the routes.
type RouteConfig struct {
	// DB is pinged by /health; nil when no database is configured.
	DB             Pinger
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, svc service.ConversionService, cfg RouteConfig) {
	app.Get("/health", HealthCheck(cfg.DB))
	app.Get("/healthz", LivenessProbe())

	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return swagger.HandlerDefault(c)
	})

	app.Post("/convert", ConvertXML(svc, cfg.MaxUploadBytes, cfg.Logger))

	reports := app.Group("/reports")
	reports.Get("/", ListReports(svc))
	reports.Get("/:id", GetReport(svc))
	reports.Get("/:id/pdf", DownloadReportPDF(svc))
	reports.Get("/:id/url", PresignReportPDF(svc))
	reports.Delete("/:id", DeleteReport(svc))
}
