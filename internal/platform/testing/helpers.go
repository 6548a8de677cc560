package testing

import (
	"testing"
	"time"

	"photoscore-server/internal/platform/config"
	"photoscore-server/internal/platform/logging"
)

func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Web.Port = 8081
	cfg.Web.StaticDir = ""
	cfg.Log.Level = "error"
	cfg.Log.Dir = t.TempDir()
	cfg.Model.APIKey = "test-key"
	cfg.Model.Timeout = 2 * time.Second
	cfg.Sidecar.Timeout = 2 * time.Second

	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	return logger
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}
