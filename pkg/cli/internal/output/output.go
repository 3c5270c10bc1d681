// Package output provides common output formatting utilities.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

// JSON writes indented JSON to w.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table creates an aligned table writer.
// Remember to call Flush() when done writing.
func Table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// Warn prints a warning message.
func Warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "Warning: "+format+"\n", args...)
}

// Palette used by the banners.
const (
	colorSuccess = "#22C55E"
	colorDanger  = "#EF4444"
	colorMuted   = "#8B949E"
)

// Success prints a success banner. Colors are dropped when w is not a
// terminal.
func Success(w io.Writer, message string) {
	style := lipgloss.NewRenderer(w).NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colorSuccess))
	fmt.Fprintln(w, style.Render("✓ "+message))
}

// Failure prints an error banner and, when set, a hint line below it.
func Failure(w io.Writer, message, hint string) {
	r := lipgloss.NewRenderer(w)
	fmt.Fprintln(w, r.NewStyle().Bold(true).Foreground(lipgloss.Color(colorDanger)).Render("✗ "+message))
	if hint != "" {
		fmt.Fprintln(w, r.NewStyle().Faint(true).Foreground(lipgloss.Color(colorMuted)).PaddingLeft(2).Render(hint))
	}
}
