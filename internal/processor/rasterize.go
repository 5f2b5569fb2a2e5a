package processor

import (
	"bytes"
	"fmt"
	"image"
	"math"

	_ "golang.org/x/image/webp" // register the WebP decoder
)

// Surface is a decoded image held in memory until it is re-encoded. The
// caller of Rasterize owns it and must call Release when done.
type Surface struct {
	img          image.Image
	Format       string
	Orientation  int
	Width        int
	Height       int
	TargetWidth  int
	TargetHeight int
}

// Image returns the decoded pixels, or ErrSurfaceReleased after Release.
func (s *Surface) Image() (image.Image, error) {
	if s == nil || s.img == nil {
		return nil, ErrSurfaceReleased
	}
	return s.img, nil
}

// Release drops the pixel buffer. It is safe to call more than once.
func (s *Surface) Release() {
	if s == nil {
		return
	}
	s.img = nil
}

// Released reports whether Release has been called.
func (s *Surface) Released() bool {
	return s == nil || s.img == nil
}

// Rasterize decodes item into an upright Surface and computes the size that
// fits the budget's box. maxPixels guards against decompression bombs; zero
// disables the guard.
func Rasterize(item SourceItem, budget Budget, maxPixels int64) (*Surface, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(item.Payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkBounds(cfg, maxPixels); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(item.Payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	orientation := 1
	if format == "jpeg" || isJPEG(item.MediaType) {
		orientation = readOrientation(item.Payload)
	}
	img = applyOrientation(img, orientation)

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	tw, th := TargetSize(w, h, budget.MaxWidthPx, budget.MaxHeightPx)

	return &Surface{
		img:          img,
		Format:       format,
		Orientation:  orientation,
		Width:        w,
		Height:       h,
		TargetWidth:  tw,
		TargetHeight: th,
	}, nil
}

// Probe reads only the image header and reports the upright intrinsic size
// and the target size, without decoding pixels. It applies the same bounds and
// pixel guard as Rasterize.
func Probe(item SourceItem, budget Budget, maxPixels int64) (format string, w, h, tw, th int, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(item.Payload))
	if err != nil {
		return "", 0, 0, 0, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkBounds(cfg, maxPixels); err != nil {
		return "", 0, 0, 0, 0, err
	}
	w, h = cfg.Width, cfg.Height
	if format == "jpeg" && swapsAxes(readOrientation(item.Payload)) {
		w, h = h, w
	}
	tw, th = TargetSize(w, h, budget.MaxWidthPx, budget.MaxHeightPx)
	return format, w, h, tw, th, nil
}

func checkBounds(cfg image.Config, maxPixels int64) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: image bounds invalid (%d x %d)", ErrDecode, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 {
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
			return fmt.Errorf("%w: pixel count %d exceeds limit %d", ErrDecode, pixels, maxPixels)
		}
	}
	return nil
}

// TargetSize fits w x h inside maxW x maxH preserving aspect ratio. It never
// upscales and never returns a side smaller than one pixel.
func TargetSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return w, h
	}
	if w <= maxW && h <= maxH {
		return w, h
	}

	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	tw := clampSide(int(math.Round(float64(w)*scale)), maxW)
	th := clampSide(int(math.Round(float64(h)*scale)), maxH)
	return tw, th
}

func clampSide(v, bound int) int {
	if v < 1 {
		return 1
	}
	if v > bound {
		return bound
	}
	return v
}
