package codec

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"golang.org/x/image/draw"
)

// ErrRendererClosed is returned when encoding through a released renderer.
var ErrRendererClosed = fmt.Errorf("codec: renderer closed")

// Renderer binds one decoded surface to one output format and renders it at
// arbitrary dimensions and quality. It implements sizefit.Encoder.
//
// The scratch canvas and encode buffer are acquired once and reused for every
// probe in a session, so a Renderer must not be shared across sessions.
// Release it with Close when the session ends.
type Renderer struct {
	src    image.Image
	format Format
	canvas *image.RGBA
	buf    *pooledBuffer
	closed bool
}

// NewRenderer creates a session-scoped renderer for src.
func NewRenderer(src image.Image, format Format) *Renderer {
	return &Renderer{
		src:    src,
		format: format,
		buf:    getBuffer(),
	}
}

// Format returns the output format the renderer encodes to.
func (r *Renderer) Format() Format { return r.format }

// Encode renders the surface at width x height and encodes it. Quality is in
// [0,1] and is mapped onto the codec's own scale; PNG ignores it.
func (r *Renderer) Encode(width, height int, quality float64) ([]byte, error) {
	if r.closed {
		return nil, ErrRendererClosed
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	surface := r.render(width, height)
	r.buf.Reset()

	var err error
	switch r.format {
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(r.buf, surface)
	case WebP:
		err = webp.Encode(r.buf, surface, &webp.Options{Quality: float32(quality * 100)})
	default:
		err = jpeg.Encode(r.buf, surface, &jpeg.Options{Quality: jpegQuality(quality)})
	}
	if err != nil {
		return nil, fmt.Errorf("codec: encode %s: %w", r.format, err)
	}

	// The buffer is reused on the next probe; hand back a copy.
	out := make([]byte, r.buf.Len())
	copy(out, r.buf.Bytes())
	return out, nil
}

// render resamples the source onto the reusable canvas. The canvas only ever
// grows; smaller targets render into a subregion.
func (r *Renderer) render(width, height int) *image.RGBA {
	if r.canvas == nil || r.canvas.Bounds().Dx() < width || r.canvas.Bounds().Dy() < height {
		cw, ch := width, height
		if b := r.src.Bounds(); b.Dx() > cw {
			cw = b.Dx()
		}
		if b := r.src.Bounds(); b.Dy() > ch {
			ch = b.Dy()
		}
		r.canvas = image.NewRGBA(image.Rect(0, 0, cw, ch))
	}
	region := r.canvas.SubImage(image.Rect(0, 0, width, height)).(*image.RGBA)
	draw.CatmullRom.Scale(region, region.Bounds(), r.src, r.src.Bounds(), draw.Src, nil)
	return region
}

// Close releases the renderer's pooled resources. Further Encode calls fail
// with ErrRendererClosed.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.canvas = nil
	putBuffer(r.buf)
	r.buf = nil
}

// jpegQuality maps [0,1] onto the JPEG encoder's 1-100 scale.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
