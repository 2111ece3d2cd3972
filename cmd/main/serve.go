package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/router"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/whatsapp"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/internal"
	ctlAdmin "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/admin"
	ctlDevice "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/device"
	ctlIndex "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/index"
	ctlMessage "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/message"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.validateServe(); err != nil {
		return err
	}

	deps, err := openDependencies(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	versions := pkgWhatsApp.NewVersionRefresher(cfg.VersionRefreshMinInterval)

	// The engine replies through the manager, so the handler is bound late.
	var engine *webhook.Engine
	manager := session.NewManager(deps.dialer, deps.store, session.Options{
		Retry:   cfg.retryPolicy(),
		Version: versions.Latest,
		OnMessage: func(msg session.InboundMessage) {
			engine.HandleMessage(msg)
		},
	})
	engine = webhook.NewEngine(cfg.webhookConfig(), manager)

	// Intialize Cron
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
	), cron.WithSeconds())

	app := newApp(internal.Controllers{
		Index:   ctlIndex.NewController(manager),
		Device:  ctlDevice.NewController(manager),
		Message: ctlMessage.NewController(manager),
		Admin:   ctlAdmin.NewController(versions, engine),
	}, cfg.JWTSecret)

	// Running Startup Tasks
	internal.Startup(manager)

	// Running Routines Tasks
	internal.Routines(c, cfg.routineConfig(), manager, versions)

	// Start Server
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.Listen(cfg.listenAddress())
	}()

	// Watch for Shutdown Signal
	sigShutdown := make(chan os.Signal, 1)
	signal.Notify(sigShutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigShutdown)

	select {
	case sig := <-sigShutdown:
		log.Print(nil).WithField("signal", sig.String()).Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			log.Print(nil).WithError(err).Error("HTTP server stopped")
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	// Try To Shutdown Server
	if err := app.ShutdownWithContext(ctxShutdown); err != nil {
		log.Print(nil).WithError(err).Warn("HTTP server shutdown incomplete")
	}

	// Try To Shutdown Cron
	select {
	case <-c.Stop().Done():
	case <-ctxShutdown.Done():
	}

	engine.Shutdown(ctxShutdown)
	manager.Close()

	log.Print(nil).Info("Shutdown complete")
	return nil
}

func newApp(controllers internal.Controllers, jwtSecret string) *fiber.App {
	// Initialize Fiber
	app := fiber.New(fiber.Config{
		ErrorHandler:          router.HttpErrorHandler,
		BodyLimit:             router.BodyLimitBytes(),
		ReadBufferSize:        8192,
		DisableStartupMessage: true,
	})

	// Request ID + panic recovery (structured JSON)
	app.Use(router.HttpRequestID())
	app.Use(router.RecoveryMiddleware())

	// Router Compression
	app.Use(compress.New(compress.Config{
		Level: compress.Level(router.GZipLevel),
		Next: func(c *fiber.Ctx) bool {
			return strings.Contains(c.Path(), "docs")
		},
	}))

	// Router CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: router.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST",
	}))

	// Router Security
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	}))

	// Router RealIP + request context enrichment
	app.Use(router.HttpRealIP())

	// Router Default Handler
	app.Get("/favicon.ico", router.ResponseNoContent)

	// Load Internal Routes
	internal.Routes(app, controllers, jwtSecret)

	return app
}
