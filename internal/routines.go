package internal

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/whatsapp"
)

const healthCheckSpec = "0 */5 * * * *"

type SessionChecker interface {
	Snapshot() session.Status
	Reconnect(ctx context.Context) error
}

type VersionRefresher interface {
	Refresh(ctx context.Context, force bool) (pkgWhatsApp.VersionStatus, bool, error)
}

// RoutineConfig selects the periodic jobs. Specs use the six-field cron
// format with seconds.
type RoutineConfig struct {
	HealthCheck         bool
	VersionRefresh      bool
	VersionRefreshSpec  string
	VersionRefreshForce bool
}

// Routines registers the periodic jobs and starts the scheduler.
func Routines(c *cron.Cron, cfg RoutineConfig, s SessionChecker, versions VersionRefresher) {
	log.Print(nil).Info("Running Routine Tasks")

	if cfg.HealthCheck {
		_, err := c.AddFunc(healthCheckSpec, func() {
			checkSession(s)
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add health check cron job")
		}
	} else {
		log.Print(nil).Info("Health check cron disabled; relying on whatsmeow event handlers")
	}

	if cfg.VersionRefresh {
		spec := cfg.VersionRefreshSpec
		force := cfg.VersionRefreshForce
		_, err := c.AddFunc(spec, func() {
			refreshVersion(versions, force)
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add WA Web version refresh cron job")
		} else {
			log.Print(nil).WithField("spec", spec).WithField("force", force).Info("WA Web version refresh cron enabled")
		}
	}

	c.Start()
}

// checkSession logs the session state and re-dials a session that dropped
// without a retry in flight. Logged-out sessions are left for the operator.
func checkSession(s SessionChecker) {
	status := s.Snapshot()
	entry := log.Print(nil).WithField("state", string(status.State))
	if status.Me != "" {
		entry = entry.WithField("jid", log.MaskJID(status.Me))
	}

	if status.Connected {
		entry.Info("Session healthy")
		return
	}
	if status.State != session.StateDisconnected || status.RetryPending {
		entry.Warn("Session not connected")
		return
	}

	entry.Warn("Session disconnected with no retry pending, reconnecting")
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	if err := s.Reconnect(ctx); err != nil {
		entry.WithError(err).Error("Health check reconnect failed")
	}
}

func refreshVersion(versions VersionRefresher, force bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	status, refreshed, err := versions.Refresh(ctx, force)
	if err != nil {
		log.Print(nil).WithField("version", status.CurrentVersion).WithField("force", force).Error("WA Web version refresh failed: " + err.Error())
		return
	}
	log.Print(nil).WithField("version", status.CurrentVersion).WithField("refreshed", refreshed).WithField("force", force).Info("WA Web version refresh completed")
}
