package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/leapcheck/pkg/core"
)

// Styles holds the lipgloss styles used in text output.
type Styles struct {
	Header    lipgloss.Style
	Header2   lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	ModelPath lipgloss.Style
	Code      lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Hint    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:    r.NewStyle().Bold(true).Underline(true),
		Header2:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:      r.NewStyle().Bold(true),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		ModelPath: r.NewStyle().Foreground(lipgloss.Color("14")),
		Code:      r.NewStyle().Foreground(lipgloss.Color("13")),

		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    r.NewStyle().Foreground(lipgloss.Color("12")),
		Hint:    r.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
	}
}

// Severity returns the style for a diagnostic severity.
func (s *Styles) Severity(sev core.Severity) lipgloss.Style {
	switch sev {
	case core.SeverityError:
		return s.Error
	case core.SeverityWarning:
		return s.Warning
	case core.SeverityInfo:
		return s.Info
	default:
		return s.Hint
	}
}
