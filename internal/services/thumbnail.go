// internal/services/thumbnail.go
package services

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

const thumbnailMaxDim = 320

// makeThumbnail downsamples an image to fit within maxDim on its longer
// side and re-encodes it as PNG. Images already small enough are only
// re-encoded. Nearest-neighbor sampling keeps this dependency-free;
// previews do not need interpolation quality.
func makeThumbnail(fileData []byte, maxDim int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(fileData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("image has empty bounds")
	}

	outW, outH := width, height
	if width > maxDim || height > maxDim {
		if width >= height {
			outW = maxDim
			outH = height * maxDim / width
		} else {
			outH = maxDim
			outW = width * maxDim / height
		}
		if outW < 1 {
			outW = 1
		}
		if outH < 1 {
			outH = 1
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		srcY := bounds.Min.Y + y*height/outH
		for x := 0; x < outW; x++ {
			srcX := bounds.Min.X + x*width/outW
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
