package whatsapp

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/gdbrns/go-whatsapp-webhook-bridge/pkg/log"
)

const sqliteFileName = "whatsmeow.db"

// OpenDatastore opens the whatsmeow device store. With a Postgres URL it
// shares the database with the auth state table, otherwise it lives as a
// SQLite file inside authDir.
func OpenDatastore(ctx context.Context, databaseURL string, authDir string) (*sqlstore.Container, error) {
	driver, dsn, err := datastoreTarget(databaseURL, authDir)
	if err != nil {
		return nil, err
	}

	log.Component("whatsapp").Info("Initializing WhatsApp datastore with driver=" + driver)

	container, err := sqlstore.New(ctx, driver, dsn, log.WhatsApp("Database"))
	if err != nil {
		return nil, fmt.Errorf("open whatsapp datastore: %w", err)
	}
	if err := container.Upgrade(ctx); err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("upgrade operation failed: %w", err)
	}
	return container, nil
}

func datastoreTarget(databaseURL string, authDir string) (string, string, error) {
	if databaseURL = strings.TrimSpace(databaseURL); databaseURL != "" {
		driver := normalizeDatastoreDriver(schemeOf(databaseURL))
		if driver != "pgx" {
			return "", "", fmt.Errorf("unsupported datastore driver %s", driver)
		}
		return driver, normalizeDatastoreDSN(driver, databaseURL), nil
	}

	if err := os.MkdirAll(authDir, 0o700); err != nil {
		return "", "", fmt.Errorf("create auth dir: %w", err)
	}
	return "sqlite3", SQLiteDSN(authDir), nil
}

// SQLiteDSN is the whatsmeow SQLite file DSN inside dir.
func SQLiteDSN(dir string) string {
	return "file:" + filepath.Join(dir, sqliteFileName) + "?_foreign_keys=on"
}

func schemeOf(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		// key=value DSNs are Postgres
		return "postgres"
	}
	return u.Scheme
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	case "sqlite", "sqlite3", "file":
		return "sqlite3"
	default:
		return strings.ToLower(driver)
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	if driver != "pgx" {
		return dsn
	}
	if !strings.Contains(dsn, "://") {
		for _, kv := range []string{"prefer_simple_protocol=true", "statement_cache_capacity=0", "default_query_exec_mode=simple_protocol"} {
			key, _, _ := strings.Cut(kv, "=")
			if !strings.Contains(dsn, key+"=") {
				dsn += " " + kv
			}
		}
		return strings.TrimSpace(dsn)
	}
	appendParam := func(current string, key string, value string) string {
		if strings.Contains(current, key+"=") {
			return current
		}
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}
	dsn = appendParam(dsn, "prefer_simple_protocol", "true")
	dsn = appendParam(dsn, "statement_cache_capacity", "0")
	dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
	return dsn
}
