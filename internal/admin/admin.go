package admin

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/internal/webhook"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/whatsapp"
)

const versionRefreshTimeout = 30 * time.Second

type VersionRefresher interface {
	Status() pkgWhatsApp.VersionStatus
	Refresh(ctx context.Context, force bool) (pkgWhatsApp.VersionStatus, bool, error)
}

type WebhookStats interface {
	Stats() webhook.Stats
}

type Controller struct {
	versions VersionRefresher
	webhooks WebhookStats
}

func NewController(versions VersionRefresher, webhooks WebhookStats) *Controller {
	return &Controller{versions: versions, webhooks: webhooks}
}

type ResponseVersionRefresh struct {
	pkgWhatsApp.VersionStatus
	Refreshed bool `json:"refreshed"`
}

// GetWhatsAppWebVersion
// @Summary     Show WhatsApp Web Version
// @Description Current WhatsApp Web client version announced on connect
// @Tags        Admin
// @Produce     json
// @Success     200 {object} router.Response
// @Security    BearerAuth
// @Router      /admin/whatsapp/version [get]
func (ctl *Controller) GetWhatsAppWebVersion(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "Success get WhatsApp Web version", ctl.versions.Status())
}

// RefreshWhatsAppWebVersion
// @Summary     Refresh WhatsApp Web Version
// @Description Fetch the latest WhatsApp Web version, used on the next connect
// @Tags        Admin
// @Produce     json
// @Param       force query bool false "Ignore the minimum refresh interval"
// @Success     200 {object} router.Response
// @Failure     500 {object} router.Response
// @Security    BearerAuth
// @Router      /admin/whatsapp/version/refresh [post]
func (ctl *Controller) RefreshWhatsAppWebVersion(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), versionRefreshTimeout)
	defer cancel()

	status, refreshed, err := ctl.versions.Refresh(ctx, c.QueryBool("force", false))
	if err != nil {
		return router.ResponseInternalError(c, "WA Web version refresh failed: "+err.Error())
	}
	return router.ResponseSuccessWithData(c, "Success refresh WhatsApp Web version", ResponseVersionRefresh{
		VersionStatus: status,
		Refreshed:     refreshed,
	})
}

// GetWebhookStats
// @Summary     Show Webhook Stats
// @Description Counters of the inbound message relay
// @Tags        Admin
// @Produce     json
// @Success     200 {object} router.Response
// @Security    BearerAuth
// @Router      /admin/webhook/stats [get]
func (ctl *Controller) GetWebhookStats(c *fiber.Ctx) error {
	return router.ResponseSuccessWithData(c, "Success get webhook stats", ctl.webhooks.Stats())
}
