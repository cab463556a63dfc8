package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// DefaultMaxWidth bounds the stored width of page images. Output format and
// quality are fixed here rather than caller-supplied so storage size stays
// predictable.
const DefaultMaxWidth = 1200

// pngEncoder pins the encoder configuration. Go's image/png is deterministic
// for a given compression level, so Optimize is byte-stable across runs.
var pngEncoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// Optimize shrinks src to at most maxWidth pixels wide (never upscaling,
// aspect ratio preserved) and re-encodes it as PNG. It returns the encoded
// bytes and the final pixel width.
func Optimize(src image.Image, maxWidth int) ([]byte, int, error) {
	if maxWidth <= 0 {
		return nil, 0, fmt.Errorf("maxWidth must be positive, got %d", maxWidth)
	}
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, 0, fmt.Errorf("source image is empty")
	}

	if width > maxWidth {
		scaledHeight := (height*maxWidth + width/2) / width
		if scaledHeight < 1 {
			scaledHeight = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, scaledHeight))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
		src = dst
		width = maxWidth
	}

	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, src); err != nil {
		return nil, 0, fmt.Errorf("failed to encode page image: %w", err)
	}
	return buf.Bytes(), width, nil
}
