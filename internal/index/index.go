package index

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/types"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/router"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
)

type Session interface {
	Snapshot() session.Status
}

type Controller struct {
	session Session
	now     func() time.Time
}

func NewController(s Session) *Controller {
	return &Controller{session: s, now: time.Now}
}

// Index
// @Summary     Show The Status of The Server
// @Description Get The Server Status
// @Tags        Root
// @Produce     json
// @Success     200
// @Router      / [get]
func (ctl *Controller) Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "Go WhatsApp Webhook Bridge is running")
}

// Health
// @Summary     Health Check
// @Description Liveness probe including the WhatsApp connection flag
// @Tags        Root
// @Produce     json
// @Success     200 {object} typWhatsApp.ResponseHealth
// @Router      /health [get]
func (ctl *Controller) Health(c *fiber.Ctx) error {
	return router.ResponseJSON(c, http.StatusOK, typWhatsApp.ResponseHealth{
		Status:    "ok",
		Connected: ctl.session.Snapshot().Connected,
		Timestamp: ctl.now().UTC().Format(time.RFC3339),
	})
}
