package env

import (
	"strings"
	"testing"
)

type parseTestConfig struct {
	Port    int    `env:"BRIDGE_TEST_PORT" envDefault:"3000"`
	Webhook string `env:"BRIDGE_TEST_WEBHOOK,required,notEmpty"`
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("BRIDGE_TEST_WEBHOOK", "http://localhost:5678/webhook")

	var cfg parseTestConfig
	if err := Parse(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.Webhook != "http://localhost:5678/webhook" {
		t.Fatalf("unexpected webhook %q", cfg.Webhook)
	}
}

func TestParseMissingRequired(t *testing.T) {
	t.Setenv("BRIDGE_TEST_WEBHOOK", "")

	var cfg parseTestConfig
	err := Parse(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestGettersFallBackToDefaults(t *testing.T) {
	t.Setenv("BRIDGE_TEST_INT", "not-an-int")
	t.Setenv("BRIDGE_TEST_BLANK", "  ")

	if got := GetEnvIntOrDefault("BRIDGE_TEST_INT", 7); got != 7 {
		t.Fatalf("int default: got %d", got)
	}
	if got := GetEnvStringOrDefault("BRIDGE_TEST_BLANK", "fallback"); got != "fallback" {
		t.Fatalf("blank string default: got %q", got)
	}
	if got := GetEnvIntOrDefault("BRIDGE_TEST_UNSET", 9); got != 9 {
		t.Fatalf("unset int default: got %d", got)
	}
	if got := GetEnvStringOrDefault("BRIDGE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("string default: got %q", got)
	}
}
