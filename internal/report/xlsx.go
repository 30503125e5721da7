package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/medequip/compliance/internal/models"
	"github.com/medequip/compliance/internal/services/compliance"
	"github.com/medequip/compliance/internal/util"
)

// Sheet names in the exported workbook.
const (
	SheetSummary  = "Summary"
	SheetAlerts   = "Alerts"
	SheetDiscards = "Discards"
)

var (
	alertHeader = []string{
		"Severity", "Type", "Item Code", "Item", "Lot", "Quantity",
		"Expiration", "Days", "Stage", "Acknowledged By", "Created",
	}
	discardHeader = []string{
		"Number", "Item Code", "Item", "Lot", "Quantity", "Unit Cost", "Total Cost",
		"Reason", "Method", "Status", "Approved By", "Witnessed By",
		"Created By", "Created", "Completed", "Cancellation Reason", "Source Alert",
	}
)

// WriteWorkbook writes an XLSX workbook with a summary sheet and one sheet
// each for alerts and discards.
func WriteWorkbook(w io.Writer, data *Data, thresholds compliance.Thresholds) error {
	if thresholds == (compliance.Thresholds{}) {
		thresholds = compliance.DefaultThresholds()
	}

	f := excelize.NewFile()
	defer f.Close()

	wb := &workbook{f: f}
	if err := wb.init(); err != nil {
		return err
	}

	if err := wb.summary(data); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := wb.alerts(data.Alerts, thresholds); err != nil {
		return fmt.Errorf("alerts sheet: %w", err)
	}
	if err := wb.discards(data.Discards); err != nil {
		return fmt.Errorf("discards sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

type workbook struct {
	f      *excelize.File
	header int
	money  int
}

func (wb *workbook) init() error {
	// The default sheet becomes the summary.
	if err := wb.f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("renaming default sheet: %w", err)
	}
	for _, name := range []string{SheetAlerts, SheetDiscards} {
		if _, err := wb.f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", name, err)
		}
	}

	var err error
	wb.header, err = wb.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0F2F1"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	fmtCode := "#,##0.00"
	wb.money, err = wb.f.NewStyle(&excelize.Style{CustomNumFmt: &fmtCode})
	if err != nil {
		return fmt.Errorf("creating currency style: %w", err)
	}
	return nil
}

func (wb *workbook) summary(data *Data) error {
	s := data.Summary
	cost, _ := s.TotalWasteCostThisMonth.Round(2).Float64()

	rows := [][]any{
		{"Facility", data.Facility},
		{"Generated", util.FormatDateTime(s.GeneratedAt)},
		{"Pending discards", s.PendingDiscards},
		{"Awaiting approval", s.PendingApprovals},
		{"Completed this month", s.CompletedThisMonth},
		{"Waste cost this month", cost},
		{"Expired alerts", s.ExpiredAlerts},
		{"Expiring alerts", s.ExpiringAlerts},
	}
	for i, row := range rows {
		if err := wb.setRow(SheetSummary, i+1, row); err != nil {
			return err
		}
	}

	if err := wb.f.SetCellStyle(SheetSummary, "A1", "A8", wb.header); err != nil {
		return err
	}
	if err := wb.f.SetCellStyle(SheetSummary, "B6", "B6", wb.money); err != nil {
		return err
	}
	return wb.f.SetColWidth(SheetSummary, "A", "B", 26)
}

func (wb *workbook) alerts(alerts []*models.ExpirationAlert, thresholds compliance.Thresholds) error {
	if err := wb.writeHeader(SheetAlerts, alertHeader); err != nil {
		return err
	}

	for i, a := range alerts {
		row := []any{
			string(thresholds.SeverityOf(a.DaysUntilExpiry)),
			string(a.AlertType),
			a.ItemCode,
			a.ItemName,
			a.LotKey(),
			a.Quantity,
			util.FormatDate(a.ExpirationDate),
			a.DaysUntilExpiry,
			string(a.Stage()),
			a.AcknowledgedBy,
			util.FormatDateTime(a.CreatedAt),
		}
		if err := wb.setRow(SheetAlerts, i+2, row); err != nil {
			return err
		}
	}

	return wb.finishTable(SheetAlerts, len(alertHeader), len(alerts))
}

func (wb *workbook) discards(discards []*models.DiscardRecord) error {
	if err := wb.writeHeader(SheetDiscards, discardHeader); err != nil {
		return err
	}

	for i, d := range discards {
		unit, _ := d.UnitCost.Float64()
		total, _ := d.TotalCost.Float64()

		row := []any{
			d.DiscardNumber,
			d.ItemCode,
			d.ItemName,
			models.LotKey(d.LotNumber),
			d.Quantity,
			unit,
			total,
			string(d.ReasonCode),
			string(d.DisposalMethod),
			string(d.Status),
			attestor(d.Approval),
			attestor(d.Witness),
			d.CreatedByName,
			util.FormatDateTime(d.CreatedAt),
			optionalTime(d.CompletedAt),
			optionalString(d.CancellationReason),
			optionalAlert(d.SourceAlertID),
		}
		if err := wb.setRow(SheetDiscards, i+2, row); err != nil {
			return err
		}
	}

	if n := len(discards); n > 0 {
		from, _ := excelize.CoordinatesToCellName(6, 2)
		to, _ := excelize.CoordinatesToCellName(7, n+1)
		if err := wb.f.SetCellStyle(SheetDiscards, from, to, wb.money); err != nil {
			return err
		}
	}

	return wb.finishTable(SheetDiscards, len(discardHeader), len(discards))
}

func (wb *workbook) writeHeader(sheet string, header []string) error {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := wb.setRow(sheet, 1, row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return wb.f.SetCellStyle(sheet, "A1", last, wb.header)
}

func (wb *workbook) setRow(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return wb.f.SetSheetRow(sheet, cell, &values)
}

// finishTable freezes the header row and adds a filter over the data.
func (wb *workbook) finishTable(sheet string, cols, rows int) error {
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}
	if err := wb.f.SetColWidth(sheet, "A", lastCol, 16); err != nil {
		return err
	}
	if err := wb.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if rows == 0 {
		return nil
	}
	return wb.f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", lastCol, rows+1), nil)
}

func attestor(a *models.Attestation) string {
	if a == nil {
		return ""
	}
	if a.ActorName != "" {
		return a.ActorName
	}
	return a.ActorID
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return util.FormatDateTime(*t)
}

func optionalString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optionalAlert(id *models.AlertID) string {
	if id == nil {
		return ""
	}
	return string(*id)
}
