package main

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/app"
)

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing .env must be ignored, got %v", err)
	}
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "OMS_GRPC_ADDR=127.0.0.1:7000\nOMS_TEST_ONLY_FROM_FILE=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("OMS_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("OMS_TEST_ONLY_FROM_FILE", "")
	os.Unsetenv("OMS_TEST_ONLY_FROM_FILE")

	if err := loadDotEnv(path); err != nil {
		t.Fatalf("load .env: %v", err)
	}

	if got := os.Getenv("OMS_GRPC_ADDR"); got != "127.0.0.1:6000" {
		t.Fatalf("environment must win over .env, got %q", got)
	}
	if got := os.Getenv("OMS_TEST_ONLY_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from .env, got %q", got)
	}

	cfg, warnings := app.LoadConfig(os.LookupEnv)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if cfg.GRPCAddr != "127.0.0.1:6000" {
		t.Fatalf("unexpected grpc addr %q", cfg.GRPCAddr)
	}
}

func TestSetupLogger(t *testing.T) {
	logger := log.New()
	cfg := app.DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	if warnings := setupLogger(logger, cfg); len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if logger.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*log.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", logger.Formatter)
	}
}

func TestSetupLogger_UnknownLevel(t *testing.T) {
	logger := log.New()
	cfg := app.DefaultConfig()
	cfg.LogLevel = "chatty"

	warnings := setupLogger(logger, cfg)
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if logger.GetLevel() != log.InfoLevel {
		t.Fatalf("expected info level, got %s", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*log.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", logger.Formatter)
	}
}
