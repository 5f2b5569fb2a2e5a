package processor

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rasterizeForTest(t *testing.T, item SourceItem, budget Budget) *Surface {
	t.Helper()
	s, err := Rasterize(item, budget, 0)
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func TestEncodeWithinBudgetIsOnePass(t *testing.T) {
	s := rasterizeForTest(t, NewSourceItem("n.jpg", "image/jpeg", noiseJPEG(t, 200, 150, 95, 3)), testBudget)

	out, err := Encode(s, s.TargetWidth, s.TargetHeight, testBudget)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Passes)
	assert.Equal(t, testBudget.InitialQuality, out.QualityUsed)
	assert.False(t, out.OverBudget)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out.Buffer))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 150, cfg.Height)
}

func TestEncodeRetriesOnceAtFloor(t *testing.T) {
	s := rasterizeForTest(t, NewSourceItem("n.jpg", "image/jpeg", noiseJPEG(t, 300, 300, 95, 4)), testBudget)

	budget := testBudget
	budget.MaxOutputBytes = 1024

	out, err := Encode(s, s.TargetWidth, s.TargetHeight, budget)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Passes)
	assert.Equal(t, budget.QualityFloor, out.QualityUsed)
	assert.True(t, out.OverBudget, "noise never fits in 1KB; best effort returns it anyway")
}

func TestEncodeRetryStopsAfterTwoPassesByDefault(t *testing.T) {
	s := rasterizeForTest(t, NewSourceItem("n.jpg", "image/jpeg", noiseJPEG(t, 120, 120, 95, 5)), testBudget)

	budget := testBudget
	budget.InitialQuality = 1.0
	budget.QualityFloor = 0.1
	budget.MaxOutputBytes = 1

	out, err := Encode(s, s.TargetWidth, s.TargetHeight, budget)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Passes)
	assert.Equal(t, 0.8, out.QualityUsed)
}

func TestEncodeZeroFloor(t *testing.T) {
	s := rasterizeForTest(t, NewSourceItem("n.jpg", "image/jpeg", noiseJPEG(t, 64, 64, 95, 9)), testBudget)

	budget := testBudget
	budget.InitialQuality = 0.2
	budget.QualityFloor = 0
	budget.MaxOutputBytes = 1
	require.NoError(t, CheckArgs(testLimits, budget))

	out, err := Encode(s, s.TargetWidth, s.TargetHeight, budget)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Passes)
	assert.Equal(t, 0.0, out.QualityUsed)
	assert.NotEmpty(t, out.Buffer)
}

func TestEncodeBoundedLoopReachesFloor(t *testing.T) {
	s := rasterizeForTest(t, NewSourceItem("n.jpg", "image/jpeg", noiseJPEG(t, 120, 120, 95, 6)), testBudget)

	budget := testBudget
	budget.InitialQuality = 0.9
	budget.QualityFloor = 0.3
	budget.MaxOutputBytes = 1
	budget.MaxPasses = 8

	out, err := Encode(s, s.TargetWidth, s.TargetHeight, budget)
	require.NoError(t, err)
	// 0.9 -> 0.7 -> 0.5 -> 0.3
	assert.Equal(t, 4, out.Passes)
	assert.Equal(t, 0.3, out.QualityUsed)
}

func TestEncodeRejectPolicy(t *testing.T) {
	s := rasterizeForTest(t, NewSourceItem("n.jpg", "image/jpeg", noiseJPEG(t, 120, 120, 95, 7)), testBudget)

	budget := testBudget
	budget.MaxOutputBytes = 1
	budget.OverBudget = OverBudgetReject

	_, err := Encode(s, s.TargetWidth, s.TargetHeight, budget)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExceeded))
	assert.Equal(t, ReasonBudgetExceeded, ReasonFor(err))
}

func TestEncodeResamples(t *testing.T) {
	budget := testBudget
	budget.MaxWidthPx, budget.MaxHeightPx = 50, 50
	s := rasterizeForTest(t, NewSourceItem("n.jpg", "image/jpeg", noiseJPEG(t, 200, 100, 90, 8)), budget)
	require.Equal(t, 50, s.TargetWidth)
	require.Equal(t, 25, s.TargetHeight)

	out, err := Encode(s, s.TargetWidth, s.TargetHeight, budget)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Buffer))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestEncodeFlattensTransparencyOntoWhite(t *testing.T) {
	s := rasterizeForTest(t, NewSourceItem("t.png", "image/png", transparentPNG(t, 16, 16)), testBudget)

	out, err := Encode(s, s.TargetWidth, s.TargetHeight, testBudget)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out.Buffer))
	require.NoError(t, err)
	r, g, b, _ := img.At(8, 8).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestEncodeReleasedSurface(t *testing.T) {
	s, err := Rasterize(NewSourceItem("a.png", "image/png", solidPNG(t, 4, 4)), testBudget, 0)
	require.NoError(t, err)
	s.Release()

	_, err = Encode(s, 4, 4, testBudget)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEncode))
	assert.True(t, errors.Is(err, ErrSurfaceReleased))
}

func TestEncodeInvalidTarget(t *testing.T) {
	s := rasterizeForTest(t, NewSourceItem("a.png", "image/png", solidPNG(t, 4, 4)), testBudget)

	_, err := Encode(s, 0, 4, testBudget)
	assert.True(t, errors.Is(err, ErrEncode))
}

func TestNextQualitySnapsToFloor(t *testing.T) {
	assert.Equal(t, 0.6, nextQuality(0.8, 0.6))
	assert.Equal(t, 0.5, nextQuality(0.6, 0.5))
	assert.Equal(t, 0.8, nextQuality(1.0, 0.1))
	assert.Equal(t, 0.7, nextQuality(0.9, 0.3))
}

func TestJPEGQuality(t *testing.T) {
	assert.Equal(t, 80, JPEGQuality(0.8))
	assert.Equal(t, 60, JPEGQuality(0.6))
	assert.Equal(t, 1, JPEGQuality(0.001))
	assert.Equal(t, 100, JPEGQuality(1.2))
}
