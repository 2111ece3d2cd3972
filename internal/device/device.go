package device

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/types"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/router"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/whatsapp"
)

type Session interface {
	Snapshot() session.Status
	Logout(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

type Controller struct {
	session Session
}

func NewController(s Session) *Controller {
	return &Controller{session: s}
}

// QR
// @Summary     Show Pairing QR Code
// @Description Render the current pairing QR code as an HTML page, a PNG image or JSON
// @Tags        Device
// @Produce     html,png,json
// @Param       format query string false "html (default), png or json"
// @Success     200
// @Failure     404 {object} router.Response
// @Router      /qr [get]
func (ctl *Controller) QR(c *fiber.Ctx) error {
	var reqQR typWhatsApp.RequestQR
	if err := c.QueryParser(&reqQR); err != nil {
		return router.ResponseBadRequest(c, "Failed parse query")
	}
	format := strings.ToLower(strings.TrimSpace(reqQR.Format))
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "png" && format != "json" {
		return router.ResponseBadRequest(c, "format must be one of html, png or json")
	}

	status := ctl.session.Snapshot()
	if status.QR == "" {
		message := qrUnavailableMessage(status)
		if format == "html" {
			return router.ResponseText(c, http.StatusOK, message)
		}
		return router.ResponseNotFound(c, message)
	}

	if format == "png" {
		png, err := pkgWhatsApp.QRPNG(status.QR)
		if err != nil {
			return router.ResponseInternalError(c, err.Error())
		}
		return router.ResponsePNG(c, png)
	}

	qrCodeImage, err := pkgWhatsApp.QRDataURL(status.QR)
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	if format == "json" {
		return router.ResponseSuccessWithData(c, "Success Generate QR Code", typWhatsApp.ResponseQR{
			QRCode: status.QR,
			Image:  qrCodeImage,
		})
	}

	htmlContent := `
		<html>
			<head>
				<title>WhatsApp Webhook Bridge Login</title>
				<meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
				<meta http-equiv="refresh" content="20" />
			</head>
			<body>
				<img src="` + qrCodeImage + `" alt="WhatsApp QR Code" />
				<p>
					<b>QR Code Scan</b>
					<br/>
					Open WhatsApp, go to Linked Devices and scan this code. The page refreshes automatically.
				</p>
			</body>
		</html>
		`
	return router.ResponseSuccessWithHTML(c, htmlContent)
}

// ConnectionStatus
// @Summary     Show Connection Status
// @Description Report whether the WhatsApp session is connected and, while pairing, the QR code
// @Tags        Device
// @Produce     json
// @Success     200 {object} typWhatsApp.ResponseConnectionStatus
// @Router      /connection-status [get]
func (ctl *Controller) ConnectionStatus(c *fiber.Ctx) error {
	status := ctl.session.Snapshot()

	res := typWhatsApp.ResponseConnectionStatus{
		Connected: status.Connected,
		State:     string(status.State),
		Since:     status.ChangedAt.UTC(),
		Message:   statusMessage(status),
	}
	if status.Me != "" {
		res.JID = log.MaskJID(status.Me)
	}
	if status.QR != "" {
		qrCodeImage, err := pkgWhatsApp.QRDataURL(status.QR)
		if err != nil {
			return router.ResponseInternalError(c, err.Error())
		}
		res.QR = qrCodeImage
	}

	return router.ResponseJSON(c, http.StatusOK, res)
}

// Logout
// @Summary     Logout Session
// @Description Unlink the device, clear stored credentials and start a new pairing
// @Tags        Device
// @Produce     json
// @Success     200 {object} router.Response
// @Failure     500 {object} router.Response
// @Security    BearerAuth
// @Router      /logout [post]
func (ctl *Controller) Logout(c *fiber.Ctx) error {
	if err := ctl.session.Logout(c.UserContext()); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Successfully logged out, scan the new QR code to pair again")
}

// Reconnect
// @Summary     Reconnect Session
// @Description Drop the current connection and dial WhatsApp again immediately
// @Tags        Device
// @Produce     json
// @Success     200 {object} router.Response
// @Failure     500 {object} router.Response
// @Security    BearerAuth
// @Router      /reconnect [post]
func (ctl *Controller) Reconnect(c *fiber.Ctx) error {
	if err := ctl.session.Reconnect(c.UserContext()); err != nil {
		return router.ResponseInternalError(c, err.Error())
	}
	return router.ResponseSuccess(c, "Reconnecting to WhatsApp")
}

func qrUnavailableMessage(status session.Status) string {
	if status.Connected {
		return "QR code not available, WhatsApp is already connected"
	}
	return "QR code not available yet, please try again in a few seconds"
}

func statusMessage(status session.Status) string {
	switch status.State {
	case session.StateConnected:
		return "Connected to WhatsApp"
	case session.StateAwaitingQR:
		return "Scan the QR code to connect"
	case session.StateLoggedOut:
		return "Logged out from WhatsApp, reconnect to pair again"
	case session.StateDisconnected:
		return "Disconnected from WhatsApp, reconnecting"
	default:
		return "Connecting to WhatsApp"
	}
}
