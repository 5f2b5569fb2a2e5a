package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"turfpix/internal/processor"
)

type SummaryRow struct {
	Label string
	Value string
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// BatchRows summarizes a batch for RenderSummary.
func BatchRows(res processor.BatchResult) []SummaryRow {
	ratio := processor.CompressionRatio(res.TotalOriginalBytes, res.TotalOutputBytes)
	return []SummaryRow{
		{Label: "Photos compressed", Value: fmt.Sprintf("%d", len(res.Successful))},
		{Label: "Photos rejected", Value: fmt.Sprintf("%d", len(res.Failed))},
		{Label: "Original size", Value: FormatBytes(res.TotalOriginalBytes)},
		{Label: "Compressed size", Value: FormatBytes(res.TotalOutputBytes)},
		{Label: "Space saved", Value: fmt.Sprintf("%s (%.1f%%)", FormatBytes(res.SavedBytes()), ratio)},
	}
}

// RenderFailures lists each rejected item with its reason, in input order.
func RenderFailures(failed []processor.FailedItem) string {
	if len(failed) == 0 {
		return ""
	}
	lines := make([]string, 0, len(failed))
	for _, f := range failed {
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			failNameStyle.Render(f.OriginalName),
			failReasonStyle.Render(string(f.Reason)),
			dimStyle.Render(f.Message),
		))
	}
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle      = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	failNameStyle   = lipgloss.NewStyle().Foreground(ColorInk)
	failReasonStyle = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
)
