// Package codec provides the concrete image capabilities the sizefit search
// is built on: decoding (JPEG, PNG, WebP, HEIF/HEIC) with EXIF orientation,
// decompression-bomb validation, and a session-scoped Renderer that
// implements sizefit.Encoder for a chosen output format.
package codec

import (
	"errors"
	"strings"
)

// Format is an output encoding. JPEG and WebP are quality-sensitive; PNG
// ignores the quality parameter entirely.
type Format int

const (
	JPEG Format = iota
	PNG
	WebP
)

// ErrUnknownFormat is returned for unrecognized format names.
var ErrUnknownFormat = errors.New("codec: unknown output format")

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	default:
		return JPEG, ErrUnknownFormat
	}
}

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case WebP:
		return "webp"
	default:
		return "jpeg"
	}
}

// MIME returns the content type for encoded output.
func (f Format) MIME() string {
	switch f {
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Ext returns the conventional file extension, dot included.
func (f Format) Ext() string {
	switch f {
	case PNG:
		return ".png"
	case WebP:
		return ".webp"
	default:
		return ".jpg"
	}
}

// QualitySensitive reports whether the format's encoder reacts to the
// quality parameter. The search runs either way; for insensitive formats
// only its dimension branches have any effect.
func (f Format) QualitySensitive() bool {
	return f != PNG
}
