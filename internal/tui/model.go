package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"turfpix/internal/processor"
)

type Model struct {
	updates     <-chan processor.ProgressUpdate
	cancel      func()
	cancelling  bool
	started     time.Time
	width       int
	total       int
	processed   int
	failed      int
	bytesBefore int64
	bytesAfter  int64
	quitting    bool
}

type doneMsg struct{}

type updateMsg processor.ProgressUpdate

// NewModel renders progress from updates until the channel is closed. The
// cancel key calls cancel and keeps rendering until the batch winds down.
func NewModel(updates <-chan processor.ProgressUpdate, cancel func()) Model {
	return Model{updates: updates, cancel: cancel, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.total += msg.TotalDelta
		m.processed += msg.ProcessedDelta
		m.failed += msg.FailedDelta
		m.bytesBefore += msg.OriginalBytesDelta
		m.bytesAfter += msg.OutputBytesDelta
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if key.Matches(msg, keys.Cancel) && !m.cancelling {
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

// Done counts items that reached a final outcome.
func (m Model) Done() int {
	return m.processed + m.failed
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-10)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.Done()) / float64(m.total)
		if ratio > 1 {
			ratio = 1
		}
	}

	bar := renderBar(barWidth, ratio)
	elapsed := time.Since(m.started).Round(time.Millisecond)

	lines := []string{
		titleStyle.Render("turfpix"),
		labelStyle.Render(fmt.Sprintf("Photos: %d/%d", m.Done(), m.total)) + dimStyle.Render(fmt.Sprintf("  failed:%d", m.failed)),
		labelStyle.Render(fmt.Sprintf("Size: %s -> %s", FormatBytes(m.bytesBefore), FormatBytes(m.bytesAfter))),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
		barStyle.Render(bar),
	}
	if m.cancelling {
		lines = append(lines, warnStyle.Render("Cancelling, waiting for photos in flight..."))
	} else {
		lines = append(lines, dimStyle.Render("Press "+keys.Cancel.Help().Key+" to "+keys.Cancel.Help().Desc))
	}

	return strings.Join(lines, "\n")
}

func listenForUpdates(updates <-chan processor.ProgressUpdate) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// FormatBytes renders n with a binary unit, e.g. "4.8 MB".
func FormatBytes(n int64) string {
	const unit = 1024
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	if n < unit {
		return fmt.Sprintf("%s%d B", sign, n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 4; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%s%.1f %cB", sign, float64(n)/float64(div), "KMGTP"[exp])
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle = lipgloss.NewStyle().Foreground(ColorInk)
	barStyle   = lipgloss.NewStyle().Foreground(ColorSuccess)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDim)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn)
)
