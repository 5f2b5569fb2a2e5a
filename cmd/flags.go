package cmd

import "github.com/spf13/pflag"

// addBudgetFlags defines the per-run overrides of the limits and budget. Only
// flags the user sets take effect; the rest leave the configured values.
func addBudgetFlags(flags *pflag.FlagSet) {
	flags.Int("max-width", 0, "maximum output width in pixels (default 1920)")
	flags.Int("max-height", 0, "maximum output height in pixels (default 1080)")
	flags.Float64("quality", 0, "initial quality factor 0..1 (default 0.8)")
	flags.Float64("quality-floor", 0, "lowest quality factor 0..1 (default 0.6)")
	flags.Int64("max-output-bytes", 0, "byte budget per photo (default 5 MiB)")
	flags.Int("max-passes", 0, "encode passes per photo (default 2)")
	flags.String("over-budget", "", "what to do when the last pass is still too large: best-effort or reject")
	flags.Int64("max-input-bytes", 0, "largest accepted input file (default 25 MiB)")
}
