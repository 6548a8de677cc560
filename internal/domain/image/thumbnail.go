package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

const thumbnailJPEGQuality = 75

// Thumbnail downscales the image so its longest edge is at most maxEdge and
// re-encodes it as JPEG. Images already within bounds are re-encoded without
// scaling so the output format is uniform.
func Thumbnail(data []byte, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		return nil, fmt.Errorf("thumbnail edge must be positive, got %d", maxEdge)
	}

	src, _, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("degenerate image bounds %dx%d", width, height)
	}

	targetW, targetH := width, height
	if width > maxEdge || height > maxEdge {
		if width >= height {
			targetW = maxEdge
			targetH = height * maxEdge / width
		} else {
			targetH = maxEdge
			targetW = width * maxEdge / height
		}
		if targetW < 1 {
			targetW = 1
		}
		if targetH < 1 {
			targetH = 1
		}
	}

	dst := stdimage.NewRGBA(stdimage.Rect(0, 0, targetW, targetH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
