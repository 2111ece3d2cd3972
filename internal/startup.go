package internal

import (
	"context"
	"time"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
)

const startupTimeout = 30 * time.Second

type SessionStarter interface {
	Start(ctx context.Context) error
	Snapshot() session.Status
}

// Startup opens the WhatsApp session. A failed first dial is only logged;
// the session keeps retrying with its own backoff.
func Startup(s SessionStarter) {
	log.Print(nil).Info("Running Startup Tasks")

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := s.Start(ctx); err != nil {
		status := s.Snapshot()
		log.Print(nil).
			WithField("state", string(status.State)).
			WithField("retry_pending", status.RetryPending).
			Warn("Failed to start WhatsApp session: " + err.Error())
		return
	}

	status := s.Snapshot()
	entry := log.Print(nil).WithField("state", string(status.State))
	if status.Me != "" {
		entry = entry.WithField("jid", log.MaskJID(status.Me))
	}
	entry.Info("WhatsApp session started")
}
