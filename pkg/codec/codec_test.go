package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// gradient builds a test image with enough detail that JPEG quality changes
// actually change output size.
func gradient(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: uint8((x ^ y) & 0xFF),
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"jpeg", JPEG, false},
		{"jpg", JPEG, false},
		{"JPEG", JPEG, false},
		{"", JPEG, false},
		{"png", PNG, false},
		{"webp", WebP, false},
		{"gif", JPEG, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatQualitySensitive(t *testing.T) {
	if !JPEG.QualitySensitive() || !WebP.QualitySensitive() {
		t.Error("JPEG and WebP should be quality-sensitive")
	}
	if PNG.QualitySensitive() {
		t.Error("PNG should ignore quality")
	}
}

func TestDecodePNGAndJPEG(t *testing.T) {
	src := gradient(120, 90)

	pngData := encodePNG(t, src)
	img, err := Decode(pngData)
	if err != nil {
		t.Fatalf("Decode(png) error = %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 90 {
		t.Errorf("Decoded PNG dimensions %dx%d, want 120x90", img.Bounds().Dx(), img.Bounds().Dy())
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	img, err = Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode(jpeg) error = %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 90 {
		t.Errorf("Decoded JPEG dimensions %dx%d, want 120x90", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestDecodeInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"garbage", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, gradient(10, 10))[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.input); !errors.Is(err, ErrInvalidImage) {
				t.Errorf("Decode() error = %v, want ErrInvalidImage", err)
			}
		})
	}
}

// hugeImage reports decompression-bomb bounds without allocating pixels.
type hugeImage struct{ w, h int }

func (h hugeImage) ColorModel() color.Model { return color.RGBAModel }
func (h hugeImage) Bounds() image.Rectangle { return image.Rect(0, 0, h.w, h.h) }
func (h hugeImage) At(x, y int) color.Color { return color.RGBA{} }

func TestValidateImageLimits(t *testing.T) {
	if err := ValidateImage(gradient(50, 50)); err != nil {
		t.Errorf("ValidateImage(small) error = %v", err)
	}
	if err := ValidateImage(hugeImage{w: MaxImageWidth + 1, h: 10}); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("oversized width: error = %v, want ErrImageTooLarge", err)
	}
	if err := ValidateImage(hugeImage{w: 20000, h: 20000}); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("pixel bomb: error = %v, want ErrImageTooLarge", err)
	}
	if err := ValidateImage(hugeImage{w: 0, h: 10}); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("zero width: error = %v, want ErrInvalidDimensions", err)
	}
}

func TestRendererEncodeJPEG(t *testing.T) {
	r := NewRenderer(gradient(200, 150), JPEG)
	defer r.Close()

	data, err := r.Encode(100, 75, 0.8)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid JPEG: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 75 {
		t.Errorf("output dimensions %dx%d, want 100x75", img.Bounds().Dx(), img.Bounds().Dy())
	}

	low, err := r.Encode(100, 75, 0.1)
	if err != nil {
		t.Fatalf("Encode(low) error = %v", err)
	}
	if len(low) >= len(data) {
		t.Errorf("quality 0.1 size %d >= quality 0.8 size %d", len(low), len(data))
	}
}

func TestRendererPNGIgnoresQuality(t *testing.T) {
	r := NewRenderer(gradient(80, 80), PNG)
	defer r.Close()

	a, err := r.Encode(80, 80, 0.1)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	b, err := r.Encode(80, 80, 0.9)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(a) != len(b) {
		t.Errorf("PNG output size varies with quality: %d vs %d", len(a), len(b))
	}
}

func TestRendererGrowsAfterShrink(t *testing.T) {
	// The canvas must handle a larger render after smaller ones, as the
	// search's nudge pass does.
	r := NewRenderer(gradient(100, 100), JPEG)
	defer r.Close()

	if _, err := r.Encode(30, 30, 0.5); err != nil {
		t.Fatalf("small render: %v", err)
	}
	data, err := r.Encode(100, 100, 0.5)
	if err != nil {
		t.Fatalf("full-size render: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
		t.Errorf("output dimensions %dx%d, want 100x100", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestRendererClosed(t *testing.T) {
	r := NewRenderer(gradient(50, 50), JPEG)
	r.Close()
	r.Close() // idempotent

	if _, err := r.Encode(50, 50, 0.5); !errors.Is(err, ErrRendererClosed) {
		t.Errorf("Encode() after Close error = %v, want ErrRendererClosed", err)
	}
}

func TestRendererInvalidDimensions(t *testing.T) {
	r := NewRenderer(gradient(50, 50), JPEG)
	defer r.Close()

	if _, err := r.Encode(0, 50, 0.5); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Encode(0, 50) error = %v, want ErrInvalidDimensions", err)
	}
}

func TestJPEGQualityMapping(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.0, 1},
		{0.005, 1},
		{0.5, 50},
		{1.0, 100},
		{1.5, 100},
	}
	for _, tt := range tests {
		if got := jpegQuality(tt.in); got != tt.want {
			t.Errorf("jpegQuality(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
