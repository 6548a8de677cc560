package config

import (
	"time"
)

// Config is the process-wide configuration, constructed once during bootstrap
// and passed by reference into every component. Components never read ambient
// environment state themselves.
type Config struct {
	Web     WebConfig     `yaml:"web"`
	Log     LogConfig     `yaml:"log"`
	Model   ModelConfig   `yaml:"model"`
	Sidecar SidecarConfig `yaml:"sidecar"`
	Image   ImageConfig   `yaml:"image"`
}

type WebConfig struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// ModelConfig describes the upstream multimodal endpoint.
type ModelConfig struct {
	Provider        string        `yaml:"provider"` // "gemini" or "openai"
	APIKey          string        `yaml:"-"`
	BaseURL         string        `yaml:"url"`
	ModelName       string        `yaml:"model_name"`
	FallbackModel   string        `yaml:"fallback_model"`
	Temperature     float64       `yaml:"temperature"`
	TopP            float64       `yaml:"top_p"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"-"`
}

// Sidecar image attachment policies.
const (
	SidecarImageNone      = "none"
	SidecarImageThumbnail = "thumbnail"
	SidecarImageFull      = "full"
)

// SidecarConfig describes the persistence webhook side channel. An empty
// WebhookURL disables the sidecar entirely; that is a supported configuration,
// not an error.
type SidecarConfig struct {
	WebhookURL       string        `yaml:"-"`
	ImagePolicy      string        `yaml:"image_policy"`
	ThumbnailMaxEdge int           `yaml:"thumbnail_max_edge"`
	QueueSize        int           `yaml:"queue_size"`
	Workers          int           `yaml:"workers"`
	Timeout          time.Duration `yaml:"-"`
}

// Enabled reports whether the sidecar path is configured at all.
func (c SidecarConfig) Enabled() bool {
	return c.WebhookURL != ""
}

type ImageConfig struct {
	MaxFileSize int64 `yaml:"max_file_size"`
}
