package main

import (
	"fmt"
	"time"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/internal"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/internal/webhook"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/env"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/session"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/validation"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/whatsapp"
)

type Config struct {
	Port          string `env:"PORT" envDefault:"3000"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`

	WebhookURL       string        `env:"WEBHOOK_URL"`
	WebhookSecret    string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout   time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"15s"`
	WebhookWorkers   int           `env:"WEBHOOK_WORKERS" envDefault:"4"`
	WebhookQueueSize int           `env:"WEBHOOK_QUEUE_SIZE" envDefault:"256"`
	WebhookDedupeTTL time.Duration `env:"WEBHOOK_DEDUPE_TTL" envDefault:"10m"`

	DatabaseURL    string `env:"DATABASE_URL"`
	AuthDir        string `env:"AUTH_DIR" envDefault:"./auth_info"`
	AuthStateTable string `env:"AUTH_STATE_TABLE" envDefault:"auth_state"`

	ReconnectBaseDelay time.Duration `env:"RECONNECT_BASE_DELAY" envDefault:"2s"`
	ReconnectMaxDelay  time.Duration `env:"RECONNECT_MAX_DELAY" envDefault:"30s"`
	ReconnectJitter    time.Duration `env:"RECONNECT_JITTER" envDefault:"500ms"`

	DeviceName                string        `env:"WHATSAPP_DEVICE_NAME" envDefault:"Chrome"`
	ProxyURL                  string        `env:"WHATSAPP_PROXY_URL"`
	QRTerminal                bool          `env:"WHATSAPP_QR_TERMINAL" envDefault:"false"`
	SendRate                  float64       `env:"WHATSAPP_SEND_RATE" envDefault:"5"`
	VersionRefreshMinInterval time.Duration `env:"WHATSAPP_WAVERSION_REFRESH_MIN_INTERVAL" envDefault:"10m"`

	HealthCheckCron         bool   `env:"WHATSAPP_ENABLE_HEALTH_CHECK_CRON" envDefault:"true"`
	VersionRefreshCron      bool   `env:"WHATSAPP_ENABLE_WAVERSION_REFRESH_CRON" envDefault:"false"`
	VersionRefreshCronSpec  string `env:"WHATSAPP_WAVERSION_REFRESH_CRON_SPEC" envDefault:"0 0 3 * * *"`
	VersionRefreshCronForce bool   `env:"WHATSAPP_WAVERSION_REFRESH_CRON_FORCE" envDefault:"false"`

	JWTSecret string `env:"HTTP_AUTH_JWT_SECRET"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateServe checks the settings only the server needs.
func (cfg Config) validateServe() error {
	if err := validation.ValidateURL(cfg.WebhookURL); err != nil {
		return fmt.Errorf("WEBHOOK_URL: %w", err)
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectBaseDelay {
		return fmt.Errorf("RECONNECT_MAX_DELAY %s is below RECONNECT_BASE_DELAY %s", cfg.ReconnectMaxDelay, cfg.ReconnectBaseDelay)
	}
	return nil
}

func (cfg Config) listenAddress() string {
	return cfg.ServerAddress + ":" + cfg.Port
}

func (cfg Config) retryPolicy() session.RetryPolicy {
	return session.RetryPolicy{
		Base:   cfg.ReconnectBaseDelay,
		Max:    cfg.ReconnectMaxDelay,
		Jitter: cfg.ReconnectJitter,
	}
}

func (cfg Config) routineConfig() internal.RoutineConfig {
	return internal.RoutineConfig{
		HealthCheck:         cfg.HealthCheckCron,
		VersionRefresh:      cfg.VersionRefreshCron,
		VersionRefreshSpec:  cfg.VersionRefreshCronSpec,
		VersionRefreshForce: cfg.VersionRefreshCronForce,
	}
}

func (cfg Config) webhookConfig() webhook.Config {
	return webhook.Config{
		URL:       cfg.WebhookURL,
		Secret:    cfg.WebhookSecret,
		Timeout:   cfg.WebhookTimeout,
		Workers:   cfg.WebhookWorkers,
		QueueSize: cfg.WebhookQueueSize,
		DedupeTTL: cfg.WebhookDedupeTTL,
	}
}

func (cfg Config) whatsappConfig() pkgWhatsApp.Config {
	return pkgWhatsApp.Config{
		DeviceName: cfg.DeviceName,
		ProxyURL:   cfg.ProxyURL,
		QRTerminal: cfg.QRTerminal,
		SendRate:   cfg.SendRate,
	}
}
