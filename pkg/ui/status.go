package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"tagsync/pkg/runlog"
)

// RenderStatus renders the last run of every brand. stored maps a brand id
// to the number of rows it has in the record store; missing brands show "-".
func RenderStatus(entries []runlog.Entry, stored map[string]int) string {
	if len(entries) == 0 {
		return Dim("No runs recorded yet")
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		count := "-"
		if n, ok := stored[e.BrandID]; ok {
			count = fmt.Sprintf("%d", n)
		}
		detail := e.StopReason
		if e.Status == runlog.StatusFailed {
			detail = e.ErrorType
		}
		rows = append(rows, []string{
			e.BrandID,
			e.TargetDay,
			string(e.Status),
			detail,
			fmt.Sprintf("%d", e.Records),
			fmt.Sprintf("+%d ~%d", e.Inserted, e.Updated),
			count,
			e.FinishedAt.Format("2006-01-02 15:04"),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(magenta)).
		Headers("BRAND", "DAY", "STATUS", "DETAIL", "MATCHED", "STORE", "ROWS", "FINISHED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return base.Foreground(cyan).Bold(true)
			case col == 2 && rows[row][2] == string(runlog.StatusFailed):
				return base.Foreground(red)
			case col == 2:
				return base.Foreground(green)
			}
			return base
		})
	return t.String()
}
