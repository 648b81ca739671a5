package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Banner is printed at the start of an interactive run
const Banner = `
   ┌─────────────────────────────────────────┐
   │   ██████╗███╗   ███╗███████╗██████╗ ██╗  │
   │  ██╔════╝████╗ ████║██╔════╝██╔══██╗██║  │
   │  ██║     ██╔████╔██║███████╗██║  ██║██║  │
   │  ██║     ██║╚██╔╝██║╚════██║██║  ██║██║  │
   │  ╚██████╗██║ ╚═╝ ██║███████║██████╔╝███╗ │
   │   ╚═════╝╚═╝     ╚═╝╚══════╝╚═════╝ ╚══╝ │
   │        GUC CMS course material sync      │
   └─────────────────────────────────────────┘
`

var (
	cyan    = lipgloss.Color("#00D7FF")
	yellow  = lipgloss.Color("#FFD700")
	red     = lipgloss.Color("#FF5F5F")
	green   = lipgloss.Color("#5FFF87")
	magenta = lipgloss.Color("#FF5FFF")
	grey    = lipgloss.Color("#8A8A8A")

	cyanStyle    = lipgloss.NewStyle().Foreground(cyan)
	yellowStyle  = lipgloss.NewStyle().Foreground(yellow)
	redStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	greenStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	magentaStyle = lipgloss.NewStyle().Foreground(magenta)
	dimStyle     = lipgloss.NewStyle().Foreground(grey)
)

// Color functions for terminal output
var (
	Cyan    = cyanStyle.Render
	Yellow  = yellowStyle.Render
	Red     = redStyle.Render
	Green   = greenStyle.Render
	Magenta = magentaStyle.Render
	Dim     = dimStyle.Render
)

// Stdout receives everything the Print helpers write
var Stdout io.Writer = os.Stdout

// PrintBanner prints the banner in colour
func PrintBanner() {
	fmt.Fprint(Stdout, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Stdout, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Stdout, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Stdout, Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Stdout, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Stdout, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(Stdout, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Stdout, Magenta(msg))
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
