package message

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/internal/types"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/router"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/validation"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/whatsapp"
)

type Sender interface {
	SendText(ctx context.Context, chatID string, text string) error
}

type Controller struct {
	sender Sender
}

func NewController(sender Sender) *Controller {
	return &Controller{sender: sender}
}

// SendMessage
// @Summary     Send Text Message
// @Description Send a plain text message to a chat through the linked WhatsApp account
// @Tags        Message
// @Accept      json
// @Produce     json
// @Param       body body typWhatsApp.RequestSendMessage true "Chat ID and message text"
// @Success     200 {object} typWhatsApp.ResponseSendMessage
// @Failure     400 {object} router.Response
// @Failure     500 {object} router.Response
// @Security    BearerAuth
// @Router      /sendMessage [post]
func (ctl *Controller) SendMessage(c *fiber.Ctx) error {
	var reqSendMessage typWhatsApp.RequestSendMessage
	if err := c.BodyParser(&reqSendMessage); err != nil {
		return router.ResponseBadRequest(c, "Failed parse body request")
	}

	chatID := strings.TrimSpace(reqSendMessage.ChatID)
	if chatID == "" || reqSendMessage.Message == "" {
		return router.ResponseBadRequest(c, "Missing chatId or message")
	}
	if err := validation.ValidateChatID(chatID); err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	err := ctl.sender.SendText(c.UserContext(), chatID, reqSendMessage.Message)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotConnected):
		return router.ResponseBadRequest(c, "WhatsApp is not connected, scan the QR code first")
	case errors.Is(err, pkgWhatsApp.ErrInvalidJID):
		return router.ResponseBadRequest(c, err.Error())
	default:
		log.Print(c).WithError(err).WithField("chat", log.MaskJID(chatID)).Error("Failed to send message")
		return router.ResponseInternalError(c, "Failed to send message")
	}

	return router.ResponseJSON(c, http.StatusOK, typWhatsApp.ResponseSendMessage{
		Status: router.StatusSuccess,
		Sent:   reqSendMessage.Message,
	})
}
