package services

import (
	"errors"
	"fmt"
	"net/http"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberSwagger "github.com/gofiber/swagger"
	log "github.com/sirupsen/logrus"

	docs "github.com/forgeyard/forge_api/docs"
	"github.com/forgeyard/forge_api/services/handlers"
	"github.com/forgeyard/forge_api/shared"
)

type HttpService struct {
	appContext.DefaultService

	authSvc      *AuthService
	registrySvc  *RegistryService
	rateLimitSvc *RateLimitService

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	svc.authSvc = ctx.Service(AUTH_SVC).(*AuthService)
	svc.registrySvc = ctx.Service(REGISTRY_SVC).(*RegistryService)
	svc.rateLimitSvc = ctx.Service(RATE_LIMIT_SVC).(*RateLimitService)

	svc.port = shared.GetEnvInt("HTTP_PORT", 8000, 1, 65535)

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	docs.SwaggerInfo.BasePath = ""

	app := fiber.New(fiber.Config{
		AppName:      SERVICE_NAME,
		ErrorHandler: svc.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Authorization",
	}))
	app.Use(MonitoringMiddleware())

	// Gatekeeper order is load-bearing: throttling runs before any auth work
	// so unauthenticated floods cannot burn verification or brute-force
	// credentials unmetered.
	app.Use(svc.rateLimitSvc.Middleware())
	app.Use(svc.authSvc.RequiredAuth())

	svc.registerRoutes(app)

	app.Use(func(c *fiber.Ctx) error {
		return shared.ResponseNotFound(c)
	})

	svc.server = app
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) registerRoutes(app *fiber.App) {
	authHandler := handlers.NewAuthHandler(svc.authSvc)
	registryHandler := handlers.NewRegistryHandler(svc.registrySvc)

	app.Get("/ping", svc.ping)
	app.Get("/health", svc.ping)
	app.Get("/swagger/*", fiberSwagger.HandlerDefault)

	v1 := app.Group("/api/v1")

	v1.Get("/ping", svc.ping)

	v1.Put("/authenticate", authHandler.Authenticate)
	v1.Post("/authenticate", authHandler.Authenticate)
	v1.Post("/register", authHandler.Register)

	v1.Get("/profile", authHandler.Profile)
	v1.Post("/token/revoke", authHandler.RevokeToken)

	v1.Get("/packages", registryHandler.ListPackages)
	v1.Post("/packages", registryHandler.UploadPackage)
	v1.Get("/packages/:id", registryHandler.GetPackage)
	v1.Get("/packages/:id/download", registryHandler.DownloadPackage)
	v1.Delete("/packages/:id", registryHandler.DeletePackage)

	v1.Delete("/reset", svc.authSvc.RequireRole(shared.RoleAdmin), registryHandler.ResetRegistry)
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")
	return shared.ResponseJSON(c, http.StatusOK, "Success", "pong")
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	if appErr, ok := shared.GetAppError(err); ok {
		if appErr.StatusCode == http.StatusUnauthorized {
			c.Set("WWW-Authenticate", "Bearer")
		}
		if appErr.StatusCode >= 500 {
			log.WithError(appErr.Err).Error("Request failed")
		}
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.WithError(err).Error("Unhandled error")
	return shared.ResponseInternalError(c, err)
}
