// Package render formats history results for the terminal.
package render

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	ColorCyan   = lipgloss.Color("12") // Headers
	ColorYellow = lipgloss.Color("11") // Match highlight
	ColorGreen  = lipgloss.Color("10") // Success indicator
	ColorRed    = lipgloss.Color("9")  // Error indicator
	ColorGray   = lipgloss.Color("8")  // Timestamps, counts, notes
)

const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "!"
	SymbolMatch   = ">"
)

// Styles holds the lipgloss styles bound to one output.
type Styles struct {
	Header    lipgloss.Style
	Highlight lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Dim       lipgloss.Style
}

// NewStyles binds styles to w. Without color every style renders plain text.
func NewStyles(w io.Writer, color bool) Styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return Styles{
		Header:    r.NewStyle().Foreground(ColorCyan).Bold(true),
		Highlight: r.NewStyle().Foreground(ColorYellow).Bold(true),
		Success:   r.NewStyle().Foreground(ColorGreen),
		Error:     r.NewStyle().Foreground(ColorRed),
		Dim:       r.NewStyle().Foreground(ColorGray),
	}
}
