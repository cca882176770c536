package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	errs "tagsync/pkg/errors"
	"tagsync/pkg/runner"
)

const (
	barFull  = "█"
	barEmpty = "░"
	barWidth = 20
)

var panelStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(magenta).
	Padding(0, 1)

// RenderReport renders the summary panel of a finished run
func RenderReport(report *runner.Report, runErr error) string {
	var lines []string
	add := func(label, value string) {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-10s", label)), valueStyle.Render(value)))
	}

	p := report.Params
	add("Brand", fmt.Sprintf("%s (@%s)", p.BrandName, p.BrandID))
	add("Day", p.TargetDay)
	add("Attempts", fmt.Sprintf("%d", report.Attempts))
	if s := report.Scan; s != nil {
		add("Stopped", string(s.StopReason))
		add("Rounds", fmt.Sprintf("%d", s.Rounds))
		add("Matched", fmt.Sprintf("%d", len(s.Records)))
		add("Classified", fmt.Sprintf("%d newer, %d on day, %d older", s.Stats.Newer, s.Stats.Matched, s.Stats.Older))
		if failed := s.Stats.DetailFailures + s.Stats.ParseFailures; failed > 0 {
			add("Skipped", fmt.Sprintf("%d unreadable posts", failed))
		}
	}
	if c := report.Commit; c != nil {
		add("Store", fmt.Sprintf("%d inserted, %d updated", c.Inserted, c.Updated))
	}
	if report.ExportPath != "" {
		add("Batch", report.ExportPath)
	}
	add("Took", FormatDuration(report.FinishedAt.Sub(report.StartedAt)))

	if report.Scan != nil && len(report.Scan.SeenHistory) > 0 {
		lines = append(lines, "", RenderSeenHistory(report.Scan.SeenHistory))
	}

	status := successStyle.Render("✓ Run completed")
	if runErr != nil {
		status = errorStyle.Render(fmt.Sprintf("✗ Run failed (%s): %v", errs.TypeOf(runErr), runErr))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panelStyle.Render(strings.Join(lines, "\n")), status)
}

// RenderSeenHistory draws one bar per round, scaled to the largest round
func RenderSeenHistory(history []int) string {
	peak := 0
	for _, n := range history {
		if n > peak {
			peak = n
		}
	}
	if peak == 0 {
		peak = 1
	}

	rows := make([]string, 0, len(history))
	for i, n := range history {
		filled := n * barWidth / peak
		bar := strings.Repeat(barFull, filled) + strings.Repeat(barEmpty, barWidth-filled)
		rows = append(rows, fmt.Sprintf("%s %s %s", Dim(fmt.Sprintf("round %2d", i+1)), successStyle.Render(bar), Dim(fmt.Sprintf("%d", n))))
	}
	return strings.Join(rows, "\n")
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
