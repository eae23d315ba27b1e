package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	analytics "drycell-monitor/internal/analytics/domain"
)

// BuildSummaryPDF renders a condition report PDF for a cell summary.
func BuildSummaryPDF(cellID string, summary analytics.Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Drying Cell Condition Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Cell: %s", cellID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("From: %s", summary.From.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("To: %s", summary.To.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d", summary.SampleCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Overall Status: %s", summary.OverallStatus))
	pdf.Ln(8)

	// Metrics table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Metric", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Mean", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "StdDev", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Anomalies", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, metric := range analytics.TrackedMetrics() {
		ms, ok := summary.Metrics[metric]
		if !ok {
			continue
		}
		pdf.CellFormat(35, 6, string(metric), "1", 0, "L", false, 0, "")
		if ms.HasData {
			pdf.CellFormat(25, 6, fmt.Sprintf("%.3f", ms.Min), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%.3f", ms.Max), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%.3f", ms.Mean), "1", 0, "R", false, 0, "")
			pdf.CellFormat(25, 6, fmt.Sprintf("%.3f", ms.StdDev), "1", 0, "R", false, 0, "")
		} else {
			for i := 0; i < 4; i++ {
				pdf.CellFormat(25, 6, "no data", "1", 0, "C", false, 0, "")
			}
		}
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", ms.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", ms.AnomalyCount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSummaryXLSX renders a condition report workbook for a cell summary.
func BuildSummaryXLSX(cellID string, summary analytics.Summary) ([]byte, error) {
	f := excelize.NewFile()
	overviewSheet := "overview"
	metricsSheet := "metrics"
	f.SetSheetName("Sheet1", overviewSheet)
	f.NewSheet(metricsSheet)

	_ = f.SetCellValue(overviewSheet, "A1", "Drying Cell Condition Report")
	_ = f.SetCellValue(overviewSheet, "A3", "Cell")
	_ = f.SetCellValue(overviewSheet, "B3", cellID)
	_ = f.SetCellValue(overviewSheet, "A4", "From")
	_ = f.SetCellValue(overviewSheet, "B4", summary.From.Format(time.RFC3339))
	_ = f.SetCellValue(overviewSheet, "A5", "To")
	_ = f.SetCellValue(overviewSheet, "B5", summary.To.Format(time.RFC3339))
	_ = f.SetCellValue(overviewSheet, "A6", "Samples")
	_ = f.SetCellValue(overviewSheet, "B6", summary.SampleCount)
	_ = f.SetCellValue(overviewSheet, "A7", "Overall Status")
	_ = f.SetCellValue(overviewSheet, "B7", string(summary.OverallStatus))

	headers := []string{"Metric", "Min", "Max", "Mean", "StdDev", "Count", "Anomalies", "Has Data"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(metricsSheet, cell, header)
	}
	row := 2
	for _, metric := range analytics.TrackedMetrics() {
		ms, ok := summary.Metrics[metric]
		if !ok {
			continue
		}
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("A%d", row), string(metric))
		if ms.HasData {
			_ = f.SetCellValue(metricsSheet, fmt.Sprintf("B%d", row), ms.Min)
			_ = f.SetCellValue(metricsSheet, fmt.Sprintf("C%d", row), ms.Max)
			_ = f.SetCellValue(metricsSheet, fmt.Sprintf("D%d", row), ms.Mean)
			_ = f.SetCellValue(metricsSheet, fmt.Sprintf("E%d", row), ms.StdDev)
		}
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("F%d", row), ms.Count)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("G%d", row), ms.AnomalyCount)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("H%d", row), ms.HasData)
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
