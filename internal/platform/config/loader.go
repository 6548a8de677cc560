package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel         = "gemini-1.5-flash-latest"
	defaultFallbackModel = "gemini-1.5-flash-8b"
)

// Loader assembles the Config from defaults, an optional yaml file and the
// process environment. Environment values win over file values so that
// deployment platforms can override everything without touching the file.
type Loader struct {
	useDotEnv bool
	path      string
	env       func(string) string
}

// NewLoader creates a loader with the default lookup chain.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      "config.yaml",
		env:       os.Getenv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the yaml overlay location.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// WithEnv overrides the environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) string) *Loader {
	if lookup != nil {
		l.env = lookup
	}
	return l
}

// Load builds the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	if l.useDotEnv {
		// No .env file is fine; the platform environment is authoritative.
		_ = godotenv.Load()
	}

	cfg := Default()

	if l.path != "" {
		if data, err := os.ReadFile(l.path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", l.path, err)
			}
		}
	}

	l.applyEnv(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	cfg.Model.APIKey = l.env("GEMINI_API_KEY")
	cfg.Sidecar.WebhookURL = l.env("APPS_SCRIPT_URL")

	setString(l.env("GEMINI_MODEL"), &cfg.Model.ModelName)
	setString(l.env("GEMINI_FALLBACK_MODEL"), &cfg.Model.FallbackModel)
	setString(l.env("GEMINI_BASE_URL"), &cfg.Model.BaseURL)
	setString(l.env("MODEL_PROVIDER"), &cfg.Model.Provider)
	setString(l.env("SIDECAR_IMAGE"), &cfg.Sidecar.ImagePolicy)
	setString(l.env("LOG_LEVEL"), &cfg.Log.Level)
	setString(l.env("LOG_DIR"), &cfg.Log.Dir)
	setString(l.env("LOG_FILE"), &cfg.Log.File)
	setString(l.env("WEB_STATIC_DIR"), &cfg.Web.StaticDir)

	setInt(l.env("GEMINI_MAX_OUTPUT_TOKENS"), &cfg.Model.MaxOutputTokens)
	setInt(l.env("WEB_PORT"), &cfg.Web.Port)

	setDuration(l.env("MODEL_TIMEOUT"), &cfg.Model.Timeout)
	setDuration(l.env("SIDECAR_TIMEOUT"), &cfg.Sidecar.Timeout)
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
		return fmt.Errorf("invalid web port %d", cfg.Web.Port)
	}
	switch strings.ToLower(cfg.Model.Provider) {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported model provider %q", cfg.Model.Provider)
	}
	switch cfg.Sidecar.ImagePolicy {
	case SidecarImageNone, SidecarImageThumbnail, SidecarImageFull:
	default:
		return fmt.Errorf("unsupported sidecar image policy %q", cfg.Sidecar.ImagePolicy)
	}
	if cfg.Model.MaxOutputTokens <= 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", cfg.Model.MaxOutputTokens)
	}
	return nil
}

// Default returns the built-in configuration baseline. The model credential
// is deliberately absent: its presence is checked per request so the server
// can boot, serve status pages and report a configuration error to callers.
func Default() *Config {
	return &Config{
		Web: WebConfig{
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "server.log",
		},
		Model: ModelConfig{
			Provider:        "gemini",
			BaseURL:         defaultBaseURL,
			ModelName:       defaultModel,
			FallbackModel:   defaultFallbackModel,
			Temperature:     0.2,
			TopP:            0.8,
			MaxOutputTokens: 512,
			Timeout:         30 * time.Second,
		},
		Sidecar: SidecarConfig{
			ImagePolicy:      SidecarImageNone,
			ThumbnailMaxEdge: 256,
			QueueSize:        128,
			Workers:          2,
			Timeout:          10 * time.Second,
		},
		Image: ImageConfig{
			MaxFileSize: 5 * 1024 * 1024,
		},
	}
}

func setString(value string, target *string) {
	if value != "" {
		*target = value
	}
}

func setInt(value string, target *int) {
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil {
		*target = parsed
	}
}

func setDuration(value string, target *time.Duration) {
	if value == "" {
		return
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		*target = parsed
	}
}
