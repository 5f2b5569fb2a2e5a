package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Encoded is the JPEG output of one surface.
type Encoded struct {
	Buffer      []byte
	QualityUsed float64
	Passes      int
	Width       int
	Height      int
	OverBudget  bool
}

// Encode resamples s to targetW x targetH and encodes it as JPEG at the
// budget's initial quality. While the output is larger than MaxOutputBytes it
// steps the quality down by QualityStep, never below QualityFloor, for at most
// budget.MaxPasses passes. The last pass is returned even if it is still over
// budget, unless the budget rejects over-budget output.
func Encode(s *Surface, targetW, targetH int, budget Budget) (Encoded, error) {
	img, err := s.Image()
	if err != nil {
		return Encoded{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if targetW <= 0 || targetH <= 0 {
		return Encoded{}, fmt.Errorf("%w: invalid target size %dx%d", ErrEncode, targetW, targetH)
	}

	frame := resample(img, targetW, targetH)
	frame = flatten(frame)

	quality := budget.InitialQuality
	maxPasses := budget.passes()
	var out Encoded
	for pass := 1; ; pass++ {
		buf, err := encodeJPEG(frame, quality)
		if err != nil {
			return Encoded{}, fmt.Errorf("%w: pass %d at quality %.2f: %v", ErrEncode, pass, quality, err)
		}

		out = Encoded{
			Buffer:      buf,
			QualityUsed: quality,
			Passes:      pass,
			Width:       targetW,
			Height:      targetH,
			OverBudget:  int64(len(buf)) > budget.MaxOutputBytes,
		}
		if !out.OverBudget || pass >= maxPasses || quality <= budget.QualityFloor {
			break
		}
		quality = nextQuality(quality, budget.QualityFloor)
	}

	if out.OverBudget && budget.OverBudget == OverBudgetReject {
		return out, fmt.Errorf("%w: %d bytes > %d at quality %.2f", ErrBudgetExceeded, len(out.Buffer), budget.MaxOutputBytes, out.QualityUsed)
	}
	return out, nil
}

// nextQuality lowers q by one step, snapping to floor so a clamped result
// compares equal to the configured floor.
func nextQuality(q, floor float64) float64 {
	next := q - QualityStep
	if next <= floor+1e-9 {
		return floor
	}
	return math.Round(next*1e6) / 1e6
}

// JPEGQuality maps a 0..1 quality factor to the codec's 1..100 scale.
func JPEGQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

func encodeJPEG(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality(quality))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func resample(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

type opaquer interface {
	Opaque() bool
}

// flatten composites img over white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if o, ok := img.(opaquer); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
