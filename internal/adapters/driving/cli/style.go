package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette shared by command output.
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan
	colorMuted     = lipgloss.Color("#6C7086") // Medium gray
	colorSuccess   = lipgloss.Color("#A6E3A1") // Green
	colorWarning   = lipgloss.Color("#F9E2AF") // Yellow
	colorError     = lipgloss.Color("#F38BA8") // Red
)

// printer styles output only when it goes to a terminal, so piped output
// and tests see plain text.
type printer struct {
	styled bool

	title   lipgloss.Style
	heading lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		styled:  isTerminal(w),
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		heading: lipgloss.NewStyle().Bold(true).Foreground(colorSecondary),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
		success: lipgloss.NewStyle().Foreground(colorSuccess),
		warning: lipgloss.NewStyle().Foreground(colorWarning),
		failure: lipgloss.NewStyle().Foreground(colorError),
	}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) Title(text string) string   { return p.render(p.title, text) }
func (p *printer) Heading(text string) string { return p.render(p.heading, text) }
func (p *printer) Muted(text string) string   { return p.render(p.muted, text) }
func (p *printer) Success(text string) string { return p.render(p.success, text) }
func (p *printer) Warning(text string) string { return p.render(p.warning, text) }
func (p *printer) Failure(text string) string { return p.render(p.failure, text) }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
