package internal

import (
	"github.com/gofiber/fiber/v2"
	swagger "github.com/gofiber/swagger"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/auth"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/router"

	ctlAdmin "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/admin"
	ctlDevice "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/device"
	ctlIndex "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/index"
	ctlMessage "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/message"
)

type Controllers struct {
	Index   *ctlIndex.Controller
	Device  *ctlDevice.Controller
	Message *ctlMessage.Controller
	Admin   *ctlAdmin.Controller
}

// Routes registers the HTTP API. When jwtSecret is set, the routes that act
// on the session require a bearer token; the QR, status and health pages
// stay public.
func Routes(app *fiber.App, ctl Controllers, jwtSecret string) {
	// Configure OpenAPI / Swagger
	specURL := router.BaseURL + "/docs/swagger.json"
	swaggerHandler := swagger.New(swagger.Config{
		URL: specURL,
	})

	protected := func(c *fiber.Ctx) error {
		return c.Next()
	}
	if jwtSecret != "" {
		protected = auth.BearerAuth(jwtSecret)
	}

	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctl.Index.Index)
	} else {
		app.Get(router.BaseURL, ctl.Index.Index)
		app.Get(router.BaseURL+"/", ctl.Index.Index)
	}
	app.Get(router.BaseURL+"/health", ctl.Index.Health)

	// Route for OpenAPI / Swagger
	// ---------------------------------------------
	app.Get(router.BaseURL+"/docs/swagger.json", func(c *fiber.Ctx) error {
		return c.SendFile("docs/swagger.json")
	})
	app.Get(router.BaseURL+"/docs/*", swaggerHandler)

	// Session
	// ---------------------------------------------
	app.Get(router.BaseURL+"/qr", ctl.Device.QR)
	app.Get(router.BaseURL+"/connection-status", ctl.Device.ConnectionStatus)
	app.Post(router.BaseURL+"/logout", protected, ctl.Device.Logout)
	app.Post(router.BaseURL+"/reconnect", protected, ctl.Device.Reconnect)

	// Messaging
	// ---------------------------------------------
	app.Post(router.BaseURL+"/sendMessage", protected, ctl.Message.SendMessage)

	// Admin
	// ---------------------------------------------
	app.Get(router.BaseURL+"/admin/whatsapp/version", protected, ctl.Admin.GetWhatsAppWebVersion)
	app.Post(router.BaseURL+"/admin/whatsapp/version/refresh", protected, ctl.Admin.RefreshWhatsAppWebVersion)
	app.Get(router.BaseURL+"/admin/webhook/stats", protected, ctl.Admin.GetWebhookStats)
}
