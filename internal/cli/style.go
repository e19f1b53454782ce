package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("#EAB308")).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	styleKey     = lipgloss.NewStyle().Foreground(lipgloss.Color("#38BDF8")).Bold(true)
	styleHeader  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleCell    = lipgloss.NewStyle().Padding(0, 1)
)

// isTerminal reports whether stream (a reader or writer) is an interactive terminal.
func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// painter applies styles only when writing to a terminal.
type painter struct {
	color bool
}

func newPainter(w io.Writer) painter {
	return painter{color: isTerminal(w) && os.Getenv("NO_COLOR") == ""}
}

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p painter) success(text string) string { return p.paint(styleSuccess, text) }
func (p painter) warning(text string) string { return p.paint(styleWarning, text) }
func (p painter) failure(text string) string { return p.paint(styleError, text) }
func (p painter) muted(text string) string   { return p.paint(styleMuted, text) }
func (p painter) key(text string) string     { return p.paint(styleKey, text) }
