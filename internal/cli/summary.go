package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/bulkload/pkg/uploader"
)

const (
	defaultBoxWidth = 56
	minBoxWidth     = 24
	boxPaddingWidth = 4
	minBarWidth     = 10
)

func boxBorderColor() lipgloss.Color { return lipgloss.Color("240") }
func boxTitleColor() lipgloss.Color { return lipgloss.Color("39") }
func colorOK() lipgloss.Color { return lipgloss.Color("42") }
func colorFailed() lipgloss.Color { return lipgloss.Color("196") }

// Summary is the end-of-run view rendered by the run command.
type Summary struct {
	RunID      string
	Items      int
	Counters   uploader.Counters
	LogOutcome uploader.LogOutcome
	Elapsed    time.Duration
	// Rate is the settlement rate in batches per second.
	Rate float64
}

// NewSummary builds a Summary from a run report.
func NewSummary(rep *uploader.Report[json.RawMessage], items int) Summary {
	return Summary{
		RunID:      rep.RunID,
		Items:      items,
		Counters:   rep.Counters,
		LogOutcome: rep.LogOutcome,
		Elapsed:    rep.Elapsed,
		Rate:       rep.BatchesPerSecond,
	}
}

// RenderSummary writes s to w, styled when w is a terminal and as plain text
// otherwise.
func RenderSummary(w io.Writer, s Summary) error {
	if isWriterTerminal(w) {
		return renderStyledSummary(w, s)
	}
	return renderPlainSummary(w, s)
}

func renderPlainSummary(w io.Writer, s Summary) error {
	p := message.NewPrinter(language.English)
	succ, fail, _ := s.Counters.Percentages()

	var b strings.Builder
	b.WriteString("UPLOAD SUMMARY\n")
	b.WriteString("==============\n")
	b.WriteString(p.Sprintf("Run:       %s\n", s.RunID))
	b.WriteString(p.Sprintf("Items:     %d\n", s.Items))
	b.WriteString(p.Sprintf("Batches:   %d\n", s.Counters.Total))
	b.WriteString(p.Sprintf("Succeeded: %d (%d%%)\n", s.Counters.Success, succ))
	b.WriteString(p.Sprintf("Failed:    %d (%d%%)\n", s.Counters.Failure, fail))
	if s.LogOutcome != uploader.LogNone {
		b.WriteString(fmt.Sprintf("Error log: %s\n", s.LogOutcome))
	}
	b.WriteString(fmt.Sprintf("Elapsed:   %s\n", s.Elapsed.Round(time.Millisecond)))
	b.WriteString(p.Sprintf("Rate:      %.1f batches/s\n", s.Rate))

	_, err := io.WriteString(w, b.String())
	return err
}

func renderStyledSummary(w io.Writer, s Summary) error {
	p := message.NewPrinter(language.English)
	succ, fail, _ := s.Counters.Percentages()

	boxWidth := calculateBoxWidth(getTerminalWidth(w))
	barWidth := max(boxWidth-boxPaddingWidth, minBarWidth)

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(boxTitleColor())
	borderStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(boxBorderColor()).
		Padding(0, 1).
		Width(boxWidth)
	okStyle := lipgloss.NewStyle().Foreground(colorOK())
	failStyle := lipgloss.NewStyle().Foreground(colorFailed())

	var content strings.Builder
	content.WriteString(titleStyle.Render("UPLOAD SUMMARY"))
	content.WriteString("\n")
	content.WriteString(strings.Repeat("─", barWidth))
	content.WriteString("\n\n")

	content.WriteString(p.Sprintf("Items: %d in %d batches\n", s.Items, s.Counters.Total))
	content.WriteString(okStyle.Render(p.Sprintf("Succeeded: %d (%d%%)", s.Counters.Success, succ)))
	content.WriteString("\n")
	if s.Counters.Failure > 0 {
		content.WriteString(failStyle.Render(p.Sprintf("Failed: %d (%d%%)", s.Counters.Failure, fail)))
	} else {
		content.WriteString("Failed: 0")
	}
	content.WriteString("\n\n")

	bar := progress.New(
		progress.WithSolidFill(string(colorOK())),
		progress.WithWidth(barWidth),
	)
	content.WriteString(bar.ViewAs(successFraction(s.Counters)))
	content.WriteString("\n\n")

	content.WriteString(lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("246")).
		Render(p.Sprintf("run %s, %s, %.1f batches/s", s.RunID, s.Elapsed.Round(time.Millisecond), s.Rate)))

	_, err := fmt.Fprintln(w, borderStyle.Render(content.String()))
	return err
}

func successFraction(c uploader.Counters) float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Success) / float64(c.Total)
}

// getTerminalWidth returns the width of w when it is a terminal, otherwise the
// default box width plus padding.
func getTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		width, _, err := term.GetSize(int(f.Fd()))
		if err == nil && width > 0 {
			return width
		}
	}
	return defaultBoxWidth + boxPaddingWidth
}

// calculateBoxWidth fits the box to the terminal, between minBoxWidth and
// defaultBoxWidth.
func calculateBoxWidth(termWidth int) int {
	return max(min(termWidth-boxPaddingWidth, defaultBoxWidth), minBoxWidth)
}
