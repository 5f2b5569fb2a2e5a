package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"turfpix/internal/listing"
	"turfpix/internal/metrics"
	"turfpix/internal/preview"
	"turfpix/internal/processor"
	"turfpix/internal/tui"
)

var (
	compressOutputDir   string
	compressReportPath  string
	compressMetricsFile string
	compressNoTUI       bool
)

var compressCmd = &cobra.Command{
	Use:   "compress [flags] <path>",
	Short: "Compress venue photos to fit the listing budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		limits := cfg.ProcessorLimits()
		budget := cfg.ProcessorBudget()

		outputDir := compressOutputDir
		if outputDir == "" {
			outputDir = "compressed"
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return err
		}

		items, err := loadItems(path, outputDir, limits.MaxInputBytes)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(os.Stdout, "No files found.")
			return nil
		}

		signalCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(signalCtx)
		defer cancel()

		collector := metrics.New()
		updates := make(chan processor.ProgressUpdate, 64)
		uiDone := watchProgress(updates, cancel, !compressNoTUI)

		coordinator := processor.NewCoordinator(
			processor.WithLogger(logger),
			processor.WithConcurrency(cfg.Concurrency),
			processor.WithProgress(updates),
			processor.WithRecorder(collector),
		)
		registry := preview.NewRegistry(preview.WithMode(cfg.Mode()), preview.WithLogger(logger))
		draft := listing.NewDraft(registry, listing.Constraints{
			MaxPhotos:     cfg.Listing.MaxPhotos,
			MaxTotalBytes: cfg.Listing.MaxTotalBytes,
		}, logger)
		defer draft.Close()

		result, _, err := draft.Ingest(ctx, coordinator, items, limits, budget)
		close(updates)
		<-uiDone
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.BatchRows(result)))
		if failures := tui.RenderFailures(result.Failed); failures != "" {
			fmt.Fprintln(os.Stdout, compressWarnStyle.Render("Rejected:"))
			fmt.Fprintln(os.Stdout, failures)
		}

		if compressReportPath != "" {
			if err := writeReport(compressReportPath, newBatchReport(result, budget)); err != nil {
				return err
			}
			logger.Info("report written", zap.String("path", compressReportPath))
		}
		if compressMetricsFile != "" {
			if err := collector.WriteTextfile(compressMetricsFile); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}

		if len(result.Successful) == 0 {
			return nil
		}
		submitter := &dirSubmitter{dir: outputDir}
		if err := draft.Submit(ctx, submitter); err != nil {
			return err
		}

		outPath := outputDir
		if abs, absErr := filepath.Abs(outputDir); absErr == nil {
			outPath = abs
		}
		fmt.Fprintf(os.Stdout, "%d compressed photos written to: %s\n", len(submitter.written), outPath)
		fmt.Fprintln(os.Stdout, compressDimStyle.Render("Note: originals are unchanged; EXIF metadata is not carried over."))
		return nil
	},
}

// runProgress shows the progress display until it quits. Tests replace it.
var runProgress = func(m tea.Model) error {
	_, err := tea.NewProgram(m).Run()
	return err
}

// watchProgress consumes updates until the channel is closed. The coordinator
// blocks on progress sends, so updates are drained even when the display fails
// to start (no TTY) or exits early.
func watchProgress(updates <-chan processor.ProgressUpdate, cancel func(), display bool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if display {
			if err := runProgress(tui.NewModel(updates, cancel)); err != nil {
				logger.Warn("progress display unavailable", zap.Error(err))
			}
		}
		for range updates {
		}
	}()
	return done
}

var (
	compressWarnStyle = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorWarn)
	compressDimStyle  = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	flags := compressCmd.Flags()
	flags.StringVarP(&compressOutputDir, "output", "o", "", "destination folder for compressed copies (default: ./compressed)")
	flags.StringVar(&compressReportPath, "report", "", "write a YAML batch report to this file")
	flags.StringVar(&compressMetricsFile, "metrics-file", "", "write Prometheus metrics in textfile format to this file")
	flags.BoolVar(&compressNoTUI, "no-tui", false, "disable the progress display")
	addBudgetFlags(flags)
	flags.Int("max-photos", 0, "maximum photos per listing (0 keeps the configured value)")

	rootCmd.AddCommand(compressCmd)
}
