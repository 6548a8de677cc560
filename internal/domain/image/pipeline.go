package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"photoscore-server/internal/platform/logging"
)

// Pipeline decodes, validates and re-encodes inbound image payloads. Inputs
// arrive as data URLs or raw base64 from the browser upload path.
type Pipeline struct {
	maxFileSize int64
	logger      *logging.Logger
}

// Options configures the pipeline behaviour.
type Options struct {
	MaxFileSize int64
	Logger      *logging.Logger
}

// Output contains the sanitised artefacts produced by the pipeline.
type Output struct {
	Bytes  []byte
	Base64 string
	Format string
}

// NewPipeline constructs an image pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Logger == nil {
		opts.Logger = logging.DefaultLogger
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &Pipeline{
		maxFileSize: maxSize,
		logger:      opts.Logger,
	}, nil
}

// Process accepts a data URL ("data:image/jpeg;base64,...") or bare base64
// text and returns decoded bytes plus the normalised base64 form.
func (p *Pipeline) Process(payload string) (*Output, error) {
	encoded := StripDataURL(payload)
	if strings.TrimSpace(encoded) == "" {
		return nil, fmt.Errorf("empty image payload")
	}

	// Base64 expands bytes 4:3, so cap the encoded length before decoding.
	if int64(len(encoded)) > (p.maxFileSize*4)/3+4 {
		return nil, fmt.Errorf("image exceeds maximum size of %d bytes", p.maxFileSize)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode base64 image: %w", err)
		}
	}

	if len(raw) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	if int64(len(raw)) > p.maxFileSize {
		return nil, fmt.Errorf("image exceeds maximum size of %d bytes", p.maxFileSize)
	}

	format := SniffFormat(raw)
	if format == "" {
		return nil, fmt.Errorf("unrecognised image format")
	}

	return &Output{
		Bytes:  raw,
		Base64: base64.StdEncoding.EncodeToString(raw),
		Format: format,
	}, nil
}

// StripDataURL removes a leading "data:<mime>;base64," header if present.
func StripDataURL(payload string) string {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "data:") {
		return payload
	}
	if idx := strings.IndexByte(payload, ','); idx >= 0 {
		return payload[idx+1:]
	}
	return payload
}

// SniffFormat identifies the image format from magic bytes. Returns "" for
// anything that is not a supported image container.
func SniffFormat(data []byte) string {
	switch {
	case len(data) >= 3 && bytes.Equal(data[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case len(data) >= 6 && (bytes.Equal(data[:6], []byte("GIF87a")) || bytes.Equal(data[:6], []byte("GIF89a"))):
		return "gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	default:
		return ""
	}
}
