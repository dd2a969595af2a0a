// Package report 报警记录 Excel 导出
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"wisefido-iv/internal/models"

	"github.com/xuri/excelize/v2"
)

// AlertExportHeader 导出表头
var AlertExportHeader = []string{
	"Record ID",
	"Generated At",
	"Category",
	"Severity",
	"Message",
	"Value",
	"Threshold",
	"State",
	"Snoozed Until",
	"Delivery",
	"Actions",
}

var alertColumnWidths = []float64{
	38, // Record ID
	22, // Generated At
	18, // Category
	10, // Severity
	48, // Message
	10, // Value
	10, // Threshold
	14, // State
	22, // Snoozed Until
	30, // Delivery
	60, // Actions
}

const timeLayout = "2006-01-02 15:04:05"

// SheetName 床位工作表名
func SheetName(bedID int) string {
	return fmt.Sprintf("Bed %d Alerts", bedID)
}

// WriteAlertWorkbook 写出单床位报警记录工作簿（表头加粗，冻结首行）
func WriteAlertWorkbook(w io.Writer, bedID int, records []models.AlertRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := SheetName(bedID)
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	criticalStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#C00000"},
	})
	if err != nil {
		return fmt.Errorf("failed to create severity style: %w", err)
	}

	header := make([]interface{}, len(AlertExportHeader))
	for i, h := range AlertExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(AlertExportHeader))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range alertColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, rec := range records {
		row := i + 2 // 第1行是表头
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := alertRow(rec)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
		if rec.IsCritical() {
			severityCell, _ := excelize.CoordinatesToCellName(4, row)
			if err := f.SetCellStyle(sheetName, severityCell, severityCell, criticalStyle); err != nil {
				return fmt.Errorf("failed to set severity style: %w", err)
			}
		}
	}

	// 冻结表头
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func alertRow(rec models.AlertRecord) []interface{} {
	snoozedUntil := ""
	if rec.State.SnoozedUntil != nil {
		snoozedUntil = rec.State.SnoozedUntil.UTC().Format(timeLayout)
	}
	delivery := make([]string, len(rec.Delivery))
	for i, ch := range rec.Delivery {
		delivery[i] = string(ch)
	}
	return []interface{}{
		rec.ID,
		rec.GeneratedAt.UTC().Format(timeLayout),
		string(rec.Category),
		string(rec.Severity),
		rec.Message,
		rec.Value,
		rec.Threshold,
		string(rec.State.Status),
		snoozedUntil,
		strings.Join(delivery, ", "),
		strings.Join(rec.Actions, "; "),
	}
}

// Since 解析导出时间窗口（如 "24h"），空串取默认值
func Since(now time.Time, window string, def time.Duration) (time.Time, error) {
	d := def
	if window != "" {
		parsed, err := time.ParseDuration(window)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid export window %q: %w", window, err)
		}
		d = parsed
	}
	return now.Add(-d), nil
}
