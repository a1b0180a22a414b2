package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	monitoring "camwatch/internal/monitoring/domain"
)

// BuildUptimePDF renders the uptime report as a PDF table.
func BuildUptimePDF(report []CameraUptime, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Camera Uptime Report (24h)")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Cameras: %d", len(report)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Camera", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "IP", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "NVR", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Downtime", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Uptime %", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range report {
		pdf.CellFormat(50, 6, row.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, row.CameraIP, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, row.NVRIP, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, monitoring.FormatDowntime(row.DowntimeSeconds), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", row.UptimePercent), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildUptimeXLSX renders the uptime report as an XLSX workbook.
func BuildUptimeXLSX(report []CameraUptime, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "uptime"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Camera Uptime Report (24h)")
	_ = f.SetCellValue(sheet, "A2", "Generated")
	_ = f.SetCellValue(sheet, "B2", generatedAt.Format(time.RFC3339))

	_ = f.SetCellValue(sheet, "A4", "Camera")
	_ = f.SetCellValue(sheet, "B4", "IP")
	_ = f.SetCellValue(sheet, "C4", "NVR")
	_ = f.SetCellValue(sheet, "D4", "Downtime (s)")
	_ = f.SetCellValue(sheet, "E4", "Uptime %")
	for i, row := range report {
		line := i + 5
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", line), row.Name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", line), row.CameraIP)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", line), row.NVRIP)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", line), row.DowntimeSeconds)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", line), row.UptimePercent)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
