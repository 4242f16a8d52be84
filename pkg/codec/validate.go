package codec

import (
	"errors"
	"image"
	"log"
)

var (
	// ErrInvalidImage is returned when input bytes cannot be decoded.
	ErrInvalidImage = errors.New("codec: not a decodable image")
	// ErrFileTooLarge is returned when the input exceeds the size limit.
	ErrFileTooLarge = errors.New("codec: file size exceeds limit")
	// ErrImageTooLarge is returned when decoded dimensions exceed limits.
	ErrImageTooLarge = errors.New("codec: image dimensions exceed maximum allowed")
	// ErrInvalidDimensions is returned for empty or degenerate images.
	ErrInvalidDimensions = errors.New("codec: invalid image dimensions")
)

// Validation limits, protecting against decompression bombs.
const (
	MaxFileSize    = 20 * 1024 * 1024 // 20MB input
	MaxImageWidth  = 20000
	MaxImageHeight = 20000
	MaxImagePixels = 250_000_000
)

// ValidateBytes checks the raw input before any decode work is done.
func ValidateBytes(data []byte) error {
	if len(data) == 0 {
		return ErrInvalidImage
	}
	if len(data) > MaxFileSize {
		log.Printf("file too large: %d bytes (max: %d)", len(data), MaxFileSize)
		return ErrFileTooLarge
	}
	return nil
}

// ValidateImage checks decoded dimensions are within acceptable limits.
func ValidateImage(img image.Image) error {
	if img == nil {
		return ErrInvalidImage
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width <= 0 || height <= 0 {
		log.Printf("invalid dimensions: %dx%d", width, height)
		return ErrInvalidDimensions
	}
	if width > MaxImageWidth || height > MaxImageHeight {
		log.Printf("dimensions too large: %dx%d (max: %dx%d)", width, height, MaxImageWidth, MaxImageHeight)
		return ErrImageTooLarge
	}
	if int64(width)*int64(height) > MaxImagePixels {
		log.Printf("too many pixels: %d (max: %d)", int64(width)*int64(height), MaxImagePixels)
		return ErrImageTooLarge
	}
	return nil
}
