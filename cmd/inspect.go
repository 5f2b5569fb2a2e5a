package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"turfpix/internal/processor"
	"turfpix/internal/tui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Check photos against the limits and show their target size without encoding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limits := cfg.ProcessorLimits()
		budget := cfg.ProcessorBudget()
		if err := processor.CheckArgs(limits, budget); err != nil {
			return err
		}

		items, err := loadItems(args[0], "", limits.MaxInputBytes)
		if err != nil {
			return err
		}

		accepted := 0
		for i, item := range items {
			if i > 0 {
				fmt.Fprintln(os.Stdout)
			}
			fmt.Fprintf(os.Stdout, "%s %s\n",
				inspectFileStyle.Render(item.Name),
				inspectDimStyle.Render(fmt.Sprintf("%s, %s", item.MediaType, tui.FormatBytes(item.ByteLength))),
			)

			v := processor.Validate(item, limits)
			if !v.OK {
				for _, reason := range v.Reasons {
					inspectLine(inspectBadStyle, "rejected", string(reason))
				}
				continue
			}

			format, w, h, tw, th, err := processor.Probe(item, budget, limits.MaxPixels)
			if err != nil {
				inspectLine(inspectBadStyle, "rejected", string(processor.ReasonFor(err)))
				continue
			}
			accepted++
			inspectLine(inspectValueStyle, "format", format)
			inspectLine(inspectValueStyle, "size", fmt.Sprintf("%dx%d -> %dx%d", w, h, tw, th))

			md := processor.ReadMetadata(item.Payload)
			if md.Orientation != 1 {
				inspectLine(inspectValueStyle, "orientation", fmt.Sprintf("%d (applied)", md.Orientation))
			}
			if md.Identifying() {
				var dropped []string
				if md.HasGPS {
					dropped = append(dropped, fmt.Sprintf("GPS (%d tags)", md.GPSTags))
				}
				if md.Camera != "" {
					dropped = append(dropped, "camera "+md.Camera)
				}
				if md.SerialTags > 0 {
					dropped = append(dropped, "serial numbers")
				}
				for _, d := range dropped {
					inspectLine(inspectWarnStyle, "dropped", d)
				}
			}
		}

		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, tui.RenderSummary([]tui.SummaryRow{
			{Label: "Photos accepted", Value: fmt.Sprintf("%d", accepted)},
			{Label: "Photos rejected", Value: fmt.Sprintf("%d", len(items)-accepted)},
		}))
		return nil
	},
}

func inspectLine(style lipgloss.Style, label, value string) {
	fmt.Fprintf(os.Stdout, "  %s %s %s\n",
		inspectBulletStyle.Render("-"),
		inspectCategoryStyle.Render(label+":"),
		style.Render(value),
	)
}

var (
	inspectFileStyle     = lipgloss.NewStyle().Bold(true).Foreground(tui.ColorAccent)
	inspectCategoryStyle = lipgloss.NewStyle().Foreground(tui.ColorAccentAlt)
	inspectValueStyle    = lipgloss.NewStyle().Foreground(tui.ColorInk)
	inspectWarnStyle     = lipgloss.NewStyle().Foreground(tui.ColorWarn)
	inspectBadStyle      = lipgloss.NewStyle().Foreground(tui.ColorError)
	inspectDimStyle      = lipgloss.NewStyle().Foreground(tui.ColorDim)
	inspectBulletStyle   = lipgloss.NewStyle().Foreground(tui.ColorDim)
)

func init() {
	addBudgetFlags(inspectCmd.Flags())
	rootCmd.AddCommand(inspectCmd)
}
