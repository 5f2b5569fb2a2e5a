package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"turfpix/internal/listing"
	"turfpix/internal/processor"
)

type batchReport struct {
	BatchID       string         `yaml:"batch_id"`
	GeneratedAt   time.Time      `yaml:"generated_at"`
	OriginalBytes int64          `yaml:"original_bytes"`
	OutputBytes   int64          `yaml:"output_bytes"`
	SavedBytes    int64          `yaml:"saved_bytes"`
	RatioPercent  float64        `yaml:"ratio_percent"`
	Budget        reportBudget   `yaml:"budget"`
	Photos        []reportPhoto  `yaml:"photos"`
	Failures      []reportFailed `yaml:"failures,omitempty"`
}

type reportBudget struct {
	MaxWidth       int     `yaml:"max_width"`
	MaxHeight      int     `yaml:"max_height"`
	InitialQuality float64 `yaml:"initial_quality"`
	QualityFloor   float64 `yaml:"quality_floor"`
	MaxOutputBytes int64   `yaml:"max_output_bytes"`
}

type reportPhoto struct {
	Index         int     `yaml:"index"`
	Name          string  `yaml:"name"`
	Original      string  `yaml:"original_size"`
	Output        string  `yaml:"output_size"`
	OriginalBytes int64   `yaml:"original_bytes"`
	OutputBytes   int64   `yaml:"output_bytes"`
	Quality       float64 `yaml:"quality"`
	Passes        int     `yaml:"passes"`
	RatioPercent  float64 `yaml:"ratio_percent"`
}

type reportFailed struct {
	Index   int      `yaml:"index"`
	Name    string   `yaml:"name"`
	Reason  string   `yaml:"reason"`
	Reasons []string `yaml:"reasons,omitempty"`
	Message string   `yaml:"message"`
}

func newBatchReport(res processor.BatchResult, budget processor.Budget) batchReport {
	r := batchReport{
		BatchID:       res.BatchID,
		GeneratedAt:   time.Now().UTC(),
		OriginalBytes: res.TotalOriginalBytes,
		OutputBytes:   res.TotalOutputBytes,
		SavedBytes:    res.SavedBytes(),
		RatioPercent:  processor.CompressionRatio(res.TotalOriginalBytes, res.TotalOutputBytes),
		Budget: reportBudget{
			MaxWidth:       budget.MaxWidthPx,
			MaxHeight:      budget.MaxHeightPx,
			InitialQuality: budget.InitialQuality,
			QualityFloor:   budget.QualityFloor,
			MaxOutputBytes: budget.MaxOutputBytes,
		},
		Photos: make([]reportPhoto, 0, len(res.Successful)),
	}
	for _, p := range res.Successful {
		r.Photos = append(r.Photos, reportPhoto{
			Index:         p.Index,
			Name:          p.Original.Name,
			Original:      fmt.Sprintf("%dx%d", p.OriginalWidth, p.OriginalHeight),
			Output:        fmt.Sprintf("%dx%d", p.WidthPx, p.HeightPx),
			OriginalBytes: p.Original.ByteLength,
			OutputBytes:   p.OutputBytes,
			Quality:       p.QualityUsed,
			Passes:        p.Passes,
			RatioPercent:  p.CompressionRatioPercent,
		})
	}
	for _, f := range res.Failed {
		reasons := make([]string, 0, len(f.Reasons))
		for _, reason := range f.Reasons {
			reasons = append(reasons, string(reason))
		}
		r.Failures = append(r.Failures, reportFailed{
			Index:   f.Index,
			Name:    f.OriginalName,
			Reason:  string(f.Reason),
			Reasons: reasons,
			Message: f.Message,
		})
	}
	return r
}

func writeReport(path string, r batchReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return enc.Close()
}

// dirSubmitter stands in for the listing backend by writing each upload into
// a directory. Name clashes get the first free numeric suffix.
type dirSubmitter struct {
	dir     string
	written []string
}

func (s *dirSubmitter) Submit(ctx context.Context, uploads []listing.Upload) error {
	used := make(map[string]bool)
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := u.Name
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		used[name] = true

		dest := filepath.Join(s.dir, name)
		if err := os.WriteFile(dest, u.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", dest, err)
		}
		s.written = append(s.written, dest)
		logger.Debug("photo written", zap.String("path", dest), zap.Int("bytes", len(u.Data)))
	}
	return nil
}
