package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/services/compliance"
	"github.com/medequip/compliance/internal/util"
)

// Terminal renders reports as styled text.
type Terminal struct {
	theme      *Theme
	thresholds compliance.Thresholds
}

// NewTerminal creates a terminal renderer. Severity columns use the given
// thresholds.
func NewTerminal(theme *Theme, thresholds compliance.Thresholds) *Terminal {
	if theme == nil {
		theme = NewTheme("")
	}
	if thresholds == (compliance.Thresholds{}) {
		thresholds = compliance.DefaultThresholds()
	}
	return &Terminal{theme: theme, thresholds: thresholds}
}

// Write renders the full report to w.
func (r *Terminal) Write(w io.Writer, data *Data) error {
	sections := []string{
		r.RenderSummary(data.Facility, data.Summary),
		r.RenderAlerts(data.Alerts),
		r.RenderDiscards(data.Discards),
	}
	_, err := io.WriteString(w, strings.Join(sections, "\n")+"\n")
	return err
}

// RenderSummary draws the compliance summary box.
func (r *Terminal) RenderSummary(facility string, s models.ComplianceSummary) string {
	t := r.theme

	line := func(label string, value string, style lipgloss.Style) string {
		return t.Label.Render(fmt.Sprintf("%-28s", label)) + style.Render(value)
	}
	count := func(n int, alarm lipgloss.Style) lipgloss.Style {
		if n > 0 {
			return alarm
		}
		return t.Value
	}

	title := "Compliance Summary"
	if facility != "" {
		title += " · " + facility
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		line("Pending discards", fmt.Sprint(s.PendingDiscards), count(s.PendingDiscards, t.Warning)),
		line("Awaiting approval", fmt.Sprint(s.PendingApprovals), count(s.PendingApprovals, t.Critical)),
		line("Completed this month", fmt.Sprint(s.CompletedThisMonth), t.Value),
		line("Waste cost this month", "$"+s.TotalWasteCostThisMonth.StringFixed(2), t.Value),
		line("Expired alerts", fmt.Sprint(s.ExpiredAlerts), count(s.ExpiredAlerts, t.Expired)),
		line("Expiring alerts", fmt.Sprint(s.ExpiringAlerts), count(s.ExpiringAlerts, t.Warning)),
		t.Muted.Render("Generated "+util.FormatDateTime(s.GeneratedAt)),
	)

	return lipgloss.JoinVertical(lipgloss.Left, t.Title.Render(title), t.Box.Render(body))
}

// RenderAlerts lists open alerts with their severity.
func (r *Terminal) RenderAlerts(alerts []*models.ExpirationAlert) string {
	table := NewTable(r.theme,
		Column{Title: "Severity", Width: 9},
		Column{Title: "Item", Width: 28},
		Column{Title: "Lot", Width: 12},
		Column{Title: "Qty", Width: 8, Align: lipgloss.Right},
		Column{Title: "Expires", Width: 10},
		Column{Title: "When", Width: 12},
		Column{Title: "Stage", Width: 12},
	)

	for _, a := range alerts {
		sev := r.thresholds.SeverityOf(a.DaysUntilExpiry)
		style := r.theme.Severity(sev)
		table.AddStyledRow(
			Cell{Text: string(sev), Style: &style},
			Cell{Text: a.ItemName},
			Cell{Text: a.LotKey()},
			Cell{Text: formatQty(a.Quantity)},
			Cell{Text: util.FormatDate(a.ExpirationDate)},
			Cell{Text: compliance.HumanDays(a.DaysUntilExpiry)},
			Cell{Text: string(a.Stage())},
		)
	}

	return r.theme.Title.Render(fmt.Sprintf("Open Expiration Alerts (%d)", len(alerts))) + "\n" + table.Render()
}

// RenderDiscards lists discard records with their outstanding controls.
func (r *Terminal) RenderDiscards(discards []*models.DiscardRecord) string {
	table := NewTable(r.theme,
		Column{Title: "Number", Width: 10},
		Column{Title: "Item", Width: 24},
		Column{Title: "Reason", Width: 16},
		Column{Title: "Qty", Width: 8, Align: lipgloss.Right},
		Column{Title: "Total", Width: 10, Align: lipgloss.Right},
		Column{Title: "Status", Width: 9},
		Column{Title: "Needs", Width: 16},
	)

	for _, d := range discards {
		style := r.theme.Status(d.Status)
		table.AddStyledRow(
			Cell{Text: d.DiscardNumber},
			Cell{Text: d.ItemName},
			Cell{Text: string(d.ReasonCode)},
			Cell{Text: formatQty(d.Quantity)},
			Cell{Text: d.TotalCost.StringFixed(2)},
			Cell{Text: string(d.Status), Style: &style},
			Cell{Text: needs(d)},
		)
	}

	return r.theme.Title.Render(fmt.Sprintf("Discard Records (%d)", len(discards))) + "\n" + table.Render()
}

func needs(d *models.DiscardRecord) string {
	if !d.Status.IsOpen() {
		return ""
	}
	missing := d.OutstandingControls()
	parts := make([]string, len(missing))
	for i, c := range missing {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func formatQty(q float64) string {
	return fmt.Sprintf("%g", q)
}
