package logging

import (
	"testing"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    interface{}
		expected interface{}
	}{
		{"contact is redacted", "contact", "010-1234-5678", "[redacted]"},
		{"image is redacted", "image", "data:image/jpeg;base64,...", "[redacted]"},
		{"imageBase64 is redacted", "imageBase64", "abc", "[redacted]"},
		{"ip is redacted", "ip", "203.0.113.9", "[redacted]"},
		{"ua is redacted", "ua", "Mozilla/5.0", "[redacted]"},
		{"requestId passes through", "requestId", "r1", "r1"},
		{"status passes through", "status", 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.key, tt.value); got != tt.expected {
				t.Errorf("Redact(%q) = %v, expected %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestFormatLog(t *testing.T) {
	tests := []struct {
		name     string
		tag      string
		message  string
		expected string
	}{
		{"adds tag", "BOOT", "service started", "[BOOT] service started"},
		{"keeps existing tag", "BOOT", "[HTTP] request served", "[HTTP] request served"},
		{"empty tag", "", "plain message", "plain message"},
		{"trims whitespace", " MODEL ", " invoking ", "[MODEL] invoking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLog(tt.tag, tt.message); got != tt.expected {
				t.Errorf("FormatLog(%q, %q) = %q, expected %q", tt.tag, tt.message, got, tt.expected)
			}
		})
	}
}

func TestNew_WritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Level: "debug", Dir: dir, Filename: "test.log"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Info("plain message")
	logger.Info("gemini:request", map[string]interface{}{"requestId": "r1", "contact": "secret"})
	logger.InfoTag("MODEL", "invoking %s", "gemini-1.5-flash-latest")
}
