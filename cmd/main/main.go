package main

// @title Go WhatsApp Webhook Bridge
// @version 1.0.0
// @description Bridges a WhatsApp multi-device session to an HTTP webhook and exposes a small REST API to send messages and pair the device

// @contact.name gdbrns
// @contact.url https://github.com/gdbrns/go-whatsapp-webhook-bridge

// @license.name MIT
// @license.url https://github.com/gdbrns/go-whatsapp-webhook-bridge/blob/main/LICENSE

// @host localhost:3000
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token, required when HTTP_AUTH_JWT_SECRET is set

import (
	"os"
)

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
