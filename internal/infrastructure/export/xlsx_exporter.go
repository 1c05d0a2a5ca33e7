package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/tutoring-backoffice/internal/application/port"
	"github.com/garyjia/tutoring-backoffice/internal/domain/entity"
	"github.com/garyjia/tutoring-backoffice/internal/domain/payroll"
)

const (
	SummarySheet   = "Summary"
	LineItemsSheet = "Line Items"

	moneyFormat = "#,##0.00"
)

var (
	summaryHeader = []interface{}{
		"Teacher ID", "Teacher", "Email", "Payment Method", "Hours", "Calculated", "Adjustments", "Final",
	}
	lineItemHeader = []interface{}{
		"Line Item ID", "Teacher", "Description", "Source", "Calculated Hours", "Actual Hours",
		"Rate", "Rate Source", "Calculated", "Adjustment", "Final",
	}
)

// XLSXExporter renders a payroll register workbook
type XLSXExporter struct {
	companyName string
	logger      *zap.Logger
}

// NewXLSXExporter creates a new workbook exporter
func NewXLSXExporter(companyName string, logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{
		companyName: companyName,
		logger:      logger,
	}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string {
	return "xlsx"
}

// Export writes a Summary sheet with one row per teacher and a Line Items
// sheet with every item of the run.
func (e *XLSXExporter) Export(detail *entity.PayrollRunDetail, teachers map[string]*entity.Teacher) ([]byte, error) {
	if detail == nil || detail.Run == nil {
		return nil, fmt.Errorf("run detail is required")
	}
	run := detail.Run

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(LineItemsSheet); err != nil {
		return nil, fmt.Errorf("failed to create line item sheet: %w", err)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: stringPtr(moneyFormat)})
	if err != nil {
		return nil, fmt.Errorf("failed to create money style: %w", err)
	}

	// Title block
	e.setCell(f, SummarySheet, "A1", e.companyName+" Payroll Register")
	e.setCell(f, SummarySheet, "A2", "Period")
	e.setCell(f, SummarySheet, "B2", fmt.Sprintf("%s to %s",
		run.PeriodStart.Format(time.DateOnly), run.PeriodEnd.Format(time.DateOnly)))
	e.setCell(f, SummarySheet, "A3", "Status")
	e.setCell(f, SummarySheet, "B3", string(run.Status))
	e.setCell(f, SummarySheet, "A4", "Run ID")
	e.setCell(f, SummarySheet, "B4", run.ID)
	_ = f.SetCellStyle(SummarySheet, "A1", "A4", boldStyle)

	const summaryHeaderRow = 6
	if err := writeRow(f, SummarySheet, summaryHeaderRow, summaryHeader); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(SummarySheet, "A6", "H6", boldStyle)

	groups := payroll.GroupByTeacher(detail.LineItems)
	teacherIDs := make([]string, 0, len(groups))
	for id := range groups {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Slice(teacherIDs, func(i, j int) bool {
		return teacherName(teachers, teacherIDs[i]) < teacherName(teachers, teacherIDs[j]) ||
			(teacherName(teachers, teacherIDs[i]) == teacherName(teachers, teacherIDs[j]) && teacherIDs[i] < teacherIDs[j])
	})

	row := summaryHeaderRow + 1
	for _, id := range teacherIDs {
		var hours, calculated, adjustments, final []float64
		for _, item := range groups[id] {
			hours = append(hours, item.ActualHours)
			calculated = append(calculated, item.CalculatedAmount)
			adjustments = append(adjustments, item.AdjustmentAmount)
			final = append(final, item.FinalAmount)
		}
		email, method := "", ""
		if t := teachers[id]; t != nil {
			email, method = t.Email, t.PaymentMethod
		}
		values := []interface{}{
			id, teacherName(teachers, id), email, method,
			payroll.Sum(hours...), payroll.Sum(calculated...), payroll.Sum(adjustments...), payroll.Sum(final...),
		}
		if err := writeRow(f, SummarySheet, row, values); err != nil {
			return nil, err
		}
		row++
	}

	totals := []interface{}{"", "Total", "", "", run.TotalHours, run.TotalCalculated, "", run.TotalAdjusted}
	if err := writeRow(f, SummarySheet, row, totals); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(SummarySheet, cellName(2, row), cellName(2, row), boldStyle)
	_ = f.SetCellStyle(SummarySheet, cellName(6, summaryHeaderRow+1), cellName(8, row), moneyStyle)
	_ = f.SetColWidth(SummarySheet, "A", "H", 16)

	if err := writeRow(f, LineItemsSheet, 1, lineItemHeader); err != nil {
		return nil, err
	}
	_ = f.SetCellStyle(LineItemsSheet, "A1", "K1", boldStyle)
	for i, item := range detail.LineItems {
		source := "assignment"
		if item.IsManual() {
			source = "manual"
		}
		values := []interface{}{
			item.ID, teacherName(teachers, item.TeacherID), item.Description, source,
			item.CalculatedHours, item.ActualHours, item.HourlyRate, item.RateSource,
			item.CalculatedAmount, item.AdjustmentAmount, item.FinalAmount,
		}
		if err := writeRow(f, LineItemsSheet, i+2, values); err != nil {
			return nil, err
		}
	}
	if len(detail.LineItems) > 0 {
		_ = f.SetCellStyle(LineItemsSheet, "G2", cellName(11, len(detail.LineItems)+1), moneyStyle)
	}
	_ = f.SetColWidth(LineItemsSheet, "A", "K", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Payroll register exported",
		zap.String("run_id", run.ID),
		zap.Int("teachers", len(teacherIDs)),
		zap.Int("line_items", len(detail.LineItems)))
	return buf.Bytes(), nil
}

// setCell sets a cell value, logging instead of failing
func (e *XLSXExporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	if err := f.SetSheetRow(sheet, cellName(1, row), &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "A1"
	}
	return name
}

func teacherName(teachers map[string]*entity.Teacher, id string) string {
	if t := teachers[id]; t != nil && t.Name != "" {
		return t.Name
	}
	return id
}

func stringPtr(s string) *string {
	return &s
}

var _ port.PayrollExporter = (*XLSXExporter)(nil)
