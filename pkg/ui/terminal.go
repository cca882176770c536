package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Logo is printed by the crawl and schedule commands
const Logo = `
 ╔╦╗╔═╗╔═╗╔═╗╦ ╦╔╗╔╔═╗
  ║ ╠═╣║ ╦╚═╗╚╦╝║║║║
  ╩ ╩ ╩╚═╝╚═╝ ╩ ╝╚╝╚═╝`

var (
	cyan    = lipgloss.Color("#00D7FF")
	magenta = lipgloss.Color("#FF5FD7")
	green   = lipgloss.Color("#5FFF5F")
	yellow  = lipgloss.Color("#FFD75F")
	red     = lipgloss.Color("#FF5F5F")
	dim     = lipgloss.Color("#8A8A8A")

	logoStyle      = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	successStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(yellow).Bold(true)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta)
	dimStyle       = lipgloss.NewStyle().Foreground(dim)
)

// Output receives everything the Print helpers write
var Output io.Writer = os.Stdout

// SetQuiet silences the Print helpers
func SetQuiet(quiet bool) {
	if quiet {
		Output = io.Discard
	} else {
		Output = os.Stdout
	}
}

// Dim renders secondary text
func Dim(text string) string {
	return dimStyle.Render(text)
}

// PrintLogo prints the logo
func PrintLogo() {
	fmt.Fprintln(Output, logoStyle.Render(Logo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output, errorStyle.Render("✗ "+msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, successStyle.Render("✓ "+msg))
}

// PrintInfo prints a label and its value
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	fmt.Fprintln(Output, warningStyle.Render("! "+msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, highlightStyle.Render(msg))
}
