package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/forgeyard/forge_api/shared"
)

const (
	MONITORING_SVC          = "monitoring_svc"
	SERVICE_NAME            = "forge_api"
	DEFAULT_PROMETHEUS_PORT = 2112
)

// Gatekeeper metrics
var (
	authAllowedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_requests_allowed_total",
			Help: "Requests that passed authentication and consumed a token use",
		},
	)

	authRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_requests_rejected_total",
			Help: "Requests rejected by the authentication middleware",
		},
		[]string{"reason"},
	)

	rateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	rateLimitTrackedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limit_tracked_clients",
			Help: "Client entries currently held by the rate limiter",
		},
	)

	tokensIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokens_issued_total",
			Help: "Bounded-use tokens minted",
		},
	)

	tokensConsumedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokens_consumed_total",
			Help: "Successful token use consumptions",
		},
	)

	tokensRevokedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tokens_revoked_total",
			Help: "Explicit token revocations",
		},
	)

	activeTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_tokens",
			Help: "Token records currently held by the token store",
		},
	)
)

// HTTP metrics
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method", "status"},
	)
)

type MonitoringService struct {
	appContext.DefaultService

	port     int
	register *prometheus.Registry

	tokenSvc *TokenService

	closed chan struct{}
	server *fiber.App
}

func (svc *MonitoringService) Id() string {
	return MONITORING_SVC
}

func (svc *MonitoringService) Configure(ctx *appContext.Context) error {
	svc.tokenSvc = ctx.Service(TOKEN_SVC).(*TokenService)
	svc.port = shared.GetEnvInt("PROMETHEUS_PORT", DEFAULT_PROMETHEUS_PORT, 1, 65535)
	return svc.DefaultService.Configure(ctx)
}

func (svc *MonitoringService) Start() error {
	svc.closed = make(chan struct{})

	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg.MustRegister(
		authAllowedTotal,
		authRejectionsTotal,
		rateLimitRejectionsTotal,
		rateLimitTrackedClients,
		tokensIssuedTotal,
		tokensConsumedTotal,
		tokensRevokedTotal,
		activeTokensGauge,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)

	svc.register = reg

	go svc.updateStoreGauges()

	config := fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
		},
	}

	svc.server = fiber.New(config)
	svc.server.Use(recover.New())

	svc.server.Get("/metrics", svc.metricsHandler)
	svc.server.Get("/health", svc.healthHandler)

	log.Info().Int("port", svc.port).Msg("Prometheus metrics server started")
	return svc.server.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *MonitoringService) Shutdown() {
	close(svc.closed)
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

func (svc *MonitoringService) metricsHandler(c *fiber.Ctx) error {
	handler := promhttp.HandlerFor(svc.register, promhttp.HandlerOpts{})
	return adaptor.HTTPHandler(handler)(c)
}

func (svc *MonitoringService) healthHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "healthy",
		"service":   SERVICE_NAME,
		"timestamp": time.Now().Unix(),
	})
}

func (svc *MonitoringService) updateStoreGauges() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-svc.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			count, err := svc.tokenSvc.ActiveTokens(ctx)
			cancel()
			if err == nil {
				activeTokensGauge.Set(float64(count))
			}
		}
	}
}

// MonitoringMiddleware records duration and status per route pattern.
func MonitoringMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		endpoint := c.Route().Path
		method := c.Method()
		status := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(endpoint, method, status).Observe(time.Since(start).Seconds())

		return err
	}
}
