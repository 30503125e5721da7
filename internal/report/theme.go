// Package report renders compliance data for people: styled terminal
// tables and spreadsheet exports.
package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/medequip/compliance/internal/config"
	"github.com/medequip/compliance/internal/models"
)

// Theme holds the terminal styles used by the renderers.
type Theme struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Muted    lipgloss.Style
	Box      lipgloss.Style
	Header   lipgloss.Style
	Row      lipgloss.Style
	RowAlt   lipgloss.Style
	Border   lipgloss.Style
	Expired  lipgloss.Style
	Critical lipgloss.Style
	Warning  lipgloss.Style
	OK       lipgloss.Style
}

// NewTheme returns the palette for a configured color scheme.
func NewTheme(scheme config.ColorScheme) *Theme {
	if scheme == config.ColorSchemeMonochrome {
		return monochromeTheme()
	}
	return clinicalTheme()
}

func clinicalTheme() *Theme {
	var (
		primary   = lipgloss.Color("#E0F2F1")
		secondary = lipgloss.Color("#80CBC4")
		accent    = lipgloss.Color("#4DD0E1")
		muted     = lipgloss.Color("#607D8B")
	)

	return &Theme{
		Title:    lipgloss.NewStyle().Foreground(accent).Bold(true).Padding(0, 1),
		Label:    lipgloss.NewStyle().Foreground(secondary),
		Value:    lipgloss.NewStyle().Foreground(primary).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(secondary).Padding(0, 1),
		Header:   lipgloss.NewStyle().Foreground(accent).Bold(true),
		Row:      lipgloss.NewStyle().Foreground(primary),
		RowAlt:   lipgloss.NewStyle().Foreground(secondary),
		Border:   lipgloss.NewStyle().Foreground(muted),
		Expired:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5252")).Bold(true),
		Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF9100")).Bold(true),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD740")),
		OK:       lipgloss.NewStyle().Foreground(lipgloss.Color("#69F0AE")),
	}
}

func monochromeTheme() *Theme {
	plain := lipgloss.NewStyle()
	bold := plain.Bold(true)

	return &Theme{
		Title:    bold.Padding(0, 1),
		Label:    plain,
		Value:    bold,
		Muted:    plain.Faint(true),
		Box:      plain.Border(lipgloss.NormalBorder()).Padding(0, 1),
		Header:   bold.Underline(true),
		Row:      plain,
		RowAlt:   plain,
		Border:   plain,
		Expired:  bold.Reverse(true),
		Critical: bold,
		Warning:  plain.Underline(true),
		OK:       plain,
	}
}

// Severity returns the style for a severity bucket.
func (t *Theme) Severity(s models.Severity) lipgloss.Style {
	switch s {
	case models.SeverityExpired:
		return t.Expired
	case models.SeverityCritical:
		return t.Critical
	case models.SeverityWarning:
		return t.Warning
	default:
		return t.OK
	}
}

// Status returns the style for a discard status.
func (t *Theme) Status(s models.DiscardStatus) lipgloss.Style {
	switch s {
	case models.DiscardStatusPending:
		return t.Warning
	case models.DiscardStatusApproved:
		return t.Critical
	case models.DiscardStatusCancelled:
		return t.Muted
	default:
		return t.OK
	}
}
