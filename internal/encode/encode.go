package encode

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"vigil/internal/capture"
)

// ErrEmptyFrame means the frame had zero area, typically because the camera
// has not negotiated real dimensions yet. The caller skips the tick.
var ErrEmptyFrame = errors.New("frame has zero area")

// DefaultQuality trades fidelity for transfer size.
const DefaultQuality = 0.7

// Encoder turns raster frames into compact JPEG payloads for transfer to
// the analyzer. Frames wider than MaxWidth are downscaled first.
type Encoder struct {
	// MaxWidth bounds the encoded image width in pixels. Zero disables
	// downscaling.
	MaxWidth int
}

// Encode compresses a frame into a JPEG payload. Quality is in [0,1] and
// is clamped; values outside the range fall back to DefaultQuality
// semantics rather than failing, since per-tick settings may be stale.
func (e *Encoder) Encode(f *capture.Frame, quality float64) ([]byte, error) {
	if f == nil || f.Image == nil || f.Width <= 0 || f.Height <= 0 {
		return nil, ErrEmptyFrame
	}

	if quality <= 0 || quality > 1 {
		quality = DefaultQuality
	}

	var src image.Image = f.Image
	if e.MaxWidth > 0 && f.Width > e.MaxWidth {
		scale := float64(e.MaxWidth) / float64(f.Width)
		dst := image.NewRGBA(image.Rect(0, 0, e.MaxWidth, int(float64(f.Height)*scale)))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		src = dst
	}

	var buf bytes.Buffer
	opts := &jpeg.Options{Quality: int(quality * 100)}
	if err := jpeg.Encode(&buf, src, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
