package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	archive "github.com/maziggy/bambusy/internal/archive/domain"
)

// BuildHistoryPDF renders a print history report.
func BuildHistoryPDF(records []archive.PrintArchive) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Print History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Prints: %d", len(records)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Started", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Printer", "1", 0, "C", false, 0, "")
	pdf.CellFormat(80, 6, "Print", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Size (bytes)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Energy (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Cost", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, record := range records {
		pdf.CellFormat(35, 6, record.CreatedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, record.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(80, 6, record.PrintName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, record.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", record.SizeBytes), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatEnergy(record.EnergyKWh, "%.4f"), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, formatEnergy(record.EnergyCost, "%.2f"), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders a print history workbook.
func BuildHistoryXLSX(records []archive.PrintArchive) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "history"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Started", "Completed", "Printer", "Print", "Filename", "Status", "Size (bytes)", "Energy (kWh)", "Cost"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, header)
	}

	for i, record := range records {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), record.CreatedAt.Format("2006-01-02 15:04"))
		completed := ""
		if record.CompletedAt != nil {
			completed = record.CompletedAt.Format("2006-01-02 15:04")
		}
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), completed)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), record.DeviceID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), record.PrintName)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), record.Filename)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), record.Status)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), record.SizeBytes)
		if record.EnergyKWh != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), *record.EnergyKWh)
		}
		if record.EnergyCost != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("I%d", row), *record.EnergyCost)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatEnergy(value *float64, format string) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf(format, *value)
}
