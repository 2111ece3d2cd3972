package main

import (
	"context"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/authstate"
	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/whatsapp"
)

// dependencies are the storage handles shared by the commands.
type dependencies struct {
	store     *authstate.Store
	container *sqlstore.Container
	dialer    *pkgWhatsApp.Dialer
}

func openDependencies(ctx context.Context, cfg Config) (*dependencies, error) {
	backend, err := openAuthBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := authstate.NewStore(backend)

	container, err := pkgWhatsApp.OpenDatastore(ctx, cfg.DatabaseURL, cfg.AuthDir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &dependencies{
		store:     store,
		container: container,
		dialer:    pkgWhatsApp.NewDialer(container, cfg.whatsappConfig()),
	}, nil
}

func openAuthBackend(ctx context.Context, cfg Config) (authstate.Backend, error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		log.Print(nil).WithField("table", cfg.AuthStateTable).Info("Using Postgres auth state")
		backend, err := authstate.NewPostgresBackend(ctx, cfg.DatabaseURL, cfg.AuthStateTable)
		if err != nil {
			return nil, fmt.Errorf("open postgres auth state: %w", err)
		}
		return backend, nil
	}

	log.Print(nil).WithField("dir", cfg.AuthDir).Info("Using file auth state")
	backend, err := authstate.NewFileBackend(cfg.AuthDir)
	if err != nil {
		return nil, fmt.Errorf("open file auth state: %w", err)
	}
	return backend, nil
}

func (d *dependencies) close() {
	if err := d.store.Close(); err != nil {
		log.Print(nil).WithError(err).Warn("Failed to close auth state store")
	}
	if err := d.container.Close(); err != nil {
		log.Print(nil).WithError(err).Warn("Failed to close WhatsApp datastore")
	}
}
