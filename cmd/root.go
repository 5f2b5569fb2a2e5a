package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"turfpix/internal/config"
	"turfpix/internal/logging"
)

var (
	configFile string

	cfg       *config.Config
	logger    = zap.NewNop()
	closeLogs = func() error { return nil }
)

// flagKeys maps flag names to config keys. Commands only bind what they define.
var flagKeys = map[string]string{
	"concurrency":      "concurrency",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"log-file":         "log.file",
	"env":              "env",
	"max-width":        "budget.max-width",
	"max-height":       "budget.max-height",
	"quality":          "budget.initial-quality",
	"quality-floor":    "budget.quality-floor",
	"max-output-bytes": "budget.max-output-bytes",
	"max-passes":       "budget.max-passes",
	"over-budget":      "budget.over-budget",
	"max-input-bytes":  "limits.max-input-bytes",
	"max-photos":       "listing.max-photos",
}

var rootCmd = &cobra.Command{
	Use:   "turfpix",
	Short: "turfpix - compress venue photos for turf listings",
	Long:  "turfpix validates, downscales and re-encodes venue photos to fit a listing's size and quality budget.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.Options{
			ConfigFile:  configFile,
			SearchPaths: searchPaths(),
			EnvFiles:    []string{".env"},
			Flags:       cmd.Flags(),
			FlagKeys:    flagKeys,
		})
		if err != nil {
			return err
		}
		cfg = loaded

		l, closeFn, err := logging.New(cfg.Log, os.Stderr)
		if err != nil {
			return err
		}
		logger, closeLogs = l, closeFn
		logger.Debug("config loaded", zap.String("env", cfg.Env), zap.Int("concurrency", cfg.Concurrency))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = closeLogs()
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_ = closeLogs()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func searchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "turfpix"))
	}
	return paths
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: ./turfpix.yaml)")
	flags.String("env", "", "runtime environment: development or production")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.String("log-file", "", "also write JSON logs to this rotated file")
	flags.IntP("concurrency", "j", 0, "parallel workers (default: number of CPUs)")
}
