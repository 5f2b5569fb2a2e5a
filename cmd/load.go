package cmd

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"turfpix/internal/processor"
	"turfpix/pkg/imgutil"
)

// loadItems walks root (a file or a directory) and returns one SourceItem per
// regular file, in walk order. Files over maxInput are not read; their item
// carries only the declared length so validation rejects them without I/O.
// Anything under skip is ignored.
func loadItems(root, skip string, maxInput int64) ([]processor.SourceItem, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		item, err := loadItem(absRoot, filepath.Base(absRoot), info.Size(), maxInput)
		if err != nil {
			return nil, err
		}
		return []processor.SourceItem{item}, nil
	}

	skipAbs := ""
	if skip != "" {
		if abs, err := filepath.Abs(skip); err == nil && isWithin(abs, absRoot) {
			skipAbs = abs
		}
	}

	var items []processor.SourceItem
	err = fs.WalkDir(os.DirFS(absRoot), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if skipAbs != "" && isWithin(filepath.Join(absRoot, path), skipAbs) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		item, err := loadItem(filepath.Join(absRoot, path), path, fi.Size(), maxInput)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func loadItem(path, name string, size, maxInput int64) (processor.SourceItem, error) {
	if maxInput > 0 && size > maxInput {
		kind, err := imgutil.SniffFile(path)
		if err != nil {
			logger.Debug("sniff failed", zap.String("file", name), zap.Error(err))
		}
		return processor.SourceItem{
			Name:       name,
			MediaType:  mediaTypeOf(kind, path),
			ByteLength: size,
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return processor.SourceItem{}, fmt.Errorf("read %s: %w", name, err)
	}
	kind, _ := imgutil.Sniff(data)
	return processor.NewSourceItem(name, mediaTypeOf(kind, path), data), nil
}

// mediaTypeOf prefers the sniffed kind and falls back to the file extension,
// the way a browser declares the type of a picked file.
func mediaTypeOf(kind imgutil.Kind, path string) string {
	if kind != imgutil.KindUnknown {
		return kind.MediaType()
	}
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
