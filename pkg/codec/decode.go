package codec

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/adrium/goheif"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Decode turns raw input bytes into a pixel surface. JPEG, PNG, WebP and
// HEIF/HEIC are supported; JPEG inputs are auto-rotated according to their
// EXIF orientation so the search operates on upright pixels.
func Decode(data []byte) (image.Image, error) {
	if err := ValidateBytes(data); err != nil {
		return nil, err
	}

	var (
		img image.Image
		err error
	)
	switch {
	case isHEIF(data):
		img, err = goheif.Decode(bytes.NewReader(data))
	case isWebP(data):
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, ErrInvalidImage
	}
	if err := ValidateImage(img); err != nil {
		return nil, err
	}

	if isJPEG(data) {
		img = applyOrientation(img, orientationOf(data))
	}
	return img, nil
}

// isHEIF checks the ISOBMFF ftyp box for known HEIF brands.
func isHEIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(bytes.ToLower(data[8:12]))
	switch brand {
	case "heic", "heim", "heis", "heix", "mif1":
		return true
	}
	return len(brand) >= 2 && brand[:2] == "he"
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}

// orientationOf reads the EXIF orientation tag, returning 1 (upright) when
// there is none or it cannot be parsed.
func orientationOf(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil || o < 1 || o > 8 {
		return 1
	}
	return o
}

// applyOrientation maps the eight EXIF orientations onto the corresponding
// flip/rotate transforms.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
