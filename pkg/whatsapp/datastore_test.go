package whatsapp

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestDatastoreTargetPostgres(t *testing.T) {
	driver, dsn, err := datastoreTarget("postgres://bridge:secret@db:5432/bridge?sslmode=disable", t.TempDir())
	if err != nil {
		t.Fatalf("datastoreTarget: %v", err)
	}
	if driver != "pgx" {
		t.Fatalf("driver = %q, want pgx", driver)
	}
	for _, param := range []string{"sslmode=disable", "prefer_simple_protocol=true", "statement_cache_capacity=0", "default_query_exec_mode=simple_protocol"} {
		if !strings.Contains(dsn, param) {
			t.Errorf("dsn %q missing %s", dsn, param)
		}
	}
	if strings.Count(dsn, "?") != 1 {
		t.Fatalf("dsn %q has more than one query separator", dsn)
	}
}

func TestDatastoreTargetKeywordDSN(t *testing.T) {
	driver, dsn, err := datastoreTarget("host=db user=bridge dbname=bridge", t.TempDir())
	if err != nil {
		t.Fatalf("datastoreTarget: %v", err)
	}
	if driver != "pgx" || !strings.HasSuffix(dsn, "default_query_exec_mode=simple_protocol") {
		t.Fatalf("driver=%q dsn=%q", driver, dsn)
	}
}

func TestDatastoreTargetSQLite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "auth_info")
	driver, dsn, err := datastoreTarget("", dir)
	if err != nil {
		t.Fatalf("datastoreTarget: %v", err)
	}
	if driver != "sqlite3" {
		t.Fatalf("driver = %q", driver)
	}
	if want := "file:" + filepath.Join(dir, "whatsmeow.db") + "?_foreign_keys=on"; dsn != want {
		t.Fatalf("dsn = %q, want %q", dsn, want)
	}
}

func TestDatastoreTargetRejectsUnknownScheme(t *testing.T) {
	if _, _, err := datastoreTarget("mysql://db/bridge", t.TempDir()); err == nil {
		t.Fatalf("expected error for mysql scheme")
	}
}

func TestNormalizeDatastoreDSNKeepsExplicitParams(t *testing.T) {
	in := "postgres://db/bridge?default_query_exec_mode=exec"
	got := normalizeDatastoreDSN("pgx", in)
	if strings.Count(got, "default_query_exec_mode=") != 1 || !strings.Contains(got, "default_query_exec_mode=exec") {
		t.Fatalf("dsn = %q", got)
	}
}
