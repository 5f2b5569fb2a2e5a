package cmd

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"turfpix/internal/listing"
	"turfpix/internal/processor"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLoadItemsWalksAndSniffs(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "a", "court.png"), 4, 4)
	writePNG(t, filepath.Join(root, "renamed.jpg"), 4, 4)
	writePNG(t, filepath.Join(root, "out", "old.png"), 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(root, "rules.txt"), []byte("no shoes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "huge.png"), bytes.Repeat([]byte{0}, 2048), 0o644))

	items, err := loadItems(root, filepath.Join(root, "out"), 1024)
	require.NoError(t, err)

	byName := map[string]processor.SourceItem{}
	for _, item := range items {
		byName[item.Name] = item
	}
	require.Len(t, byName, 4)

	assert.Equal(t, "image/png", byName[filepath.Join("a", "court.png")].MediaType)
	assert.Equal(t, "image/png", byName["renamed.jpg"].MediaType, "content wins over extension")
	assert.Contains(t, byName["rules.txt"].MediaType, "text/plain")

	huge := byName["huge.png"]
	assert.Equal(t, int64(2048), huge.ByteLength)
	assert.Nil(t, huge.Payload)
}

func TestLoadItemsSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pitch.png")
	writePNG(t, path, 8, 8)

	items, err := loadItems(path, "", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "pitch.png", items[0].Name)
	assert.Equal(t, int64(len(items[0].Payload)), items[0].ByteLength)
}

func TestIsWithin(t *testing.T) {
	assert.True(t, isWithin("/a/b/c", "/a/b"))
	assert.True(t, isWithin("/a/b", "/a/b"))
	assert.False(t, isWithin("/a/bc", "/a/b"))
	assert.False(t, isWithin("/a", "/a/b"))
}

func TestDirSubmitterDeduplicates(t *testing.T) {
	dir := t.TempDir()
	s := &dirSubmitter{dir: dir}

	err := s.Submit(context.Background(), []listing.Upload{
		{Name: "pitch.jpg", Data: []byte{1}},
		{Name: "pitch.jpg", Data: []byte{2}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "pitch.jpg"), filepath.Join(dir, "pitch-1.jpg")}, s.written)
	data, err := os.ReadFile(filepath.Join(dir, "pitch-1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, data)
}

func TestDirSubmitterNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	s := &dirSubmitter{dir: dir}

	err := s.Submit(context.Background(), []listing.Upload{
		{Name: "pitch.jpg", Data: []byte{1}},
		{Name: "pitch.jpg", Data: []byte{2}},
		{Name: "pitch-1.jpg", Data: []byte{3}},
		{Name: "pitch.jpg", Data: []byte{4}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "pitch.jpg"),
		filepath.Join(dir, "pitch-1.jpg"),
		filepath.Join(dir, "pitch-1-1.jpg"),
		filepath.Join(dir, "pitch-2.jpg"),
	}, s.written)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	for i, path := range s.written {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i + 1)}, data)
	}
}

func TestWriteReport(t *testing.T) {
	res := processor.BatchResult{
		BatchID: "b-1",
		Successful: []processor.ProcessedItem{{
			Index:          0,
			Original:       processor.SourceItem{Name: "a.png", ByteLength: 400},
			OutputBytes:    100,
			OriginalWidth:  2000,
			OriginalHeight: 4000,
			WidthPx:        400,
			HeightPx:       800,
			QualityUsed:    0.8,
			Passes:         1,
		}},
		Failed: []processor.FailedItem{{
			Index:        1,
			OriginalName: "b.pdf",
			Reason:       processor.ReasonUnsupportedType,
			Reasons:      []processor.Reason{processor.ReasonUnsupportedType},
		}},
		TotalOriginalBytes: 400,
		TotalOutputBytes:   100,
	}

	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, writeReport(path, newBatchReport(res, processor.Budget{MaxWidthPx: 1200, MaxHeightPx: 800})))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got batchReport
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "b-1", got.BatchID)
	assert.Equal(t, 75.0, got.RatioPercent)
	require.Len(t, got.Photos, 1)
	assert.Equal(t, "2000x4000", got.Photos[0].Original)
	assert.Equal(t, "400x800", got.Photos[0].Output)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "UnsupportedType", got.Failures[0].Reason)
}
