package processor

import (
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// readOrientation returns the EXIF orientation (1..8) of an encoded image, or
// 1 when the payload carries none.
func readOrientation(payload []byte) int {
	return ReadMetadata(payload).Orientation
}

// applyOrientation returns img transformed so it displays upright.
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

// swapsAxes reports whether an orientation exchanges width and height.
func swapsAxes(orientation int) bool {
	return orientation >= 5 && orientation <= 8
}

func isJPEG(mediaType string) bool {
	mt := normalizeMediaType(mediaType)
	return mt == "image/jpeg" || strings.HasSuffix(mt, "/jpg") || mt == "image/pjpeg"
}
