package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	toll "toll-calculator/internal/toll/domain"
)

// ReportExport is the input of the report renderers.
type ReportExport struct {
	Vehicle     toll.VehicleType
	Currency    string
	GeneratedAt time.Time
	Reports     []toll.DailyReport
}

// BuildReportPDF renders a minimal PDF with one table per day.
func BuildReportPDF(export ReportExport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Toll Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Vehicle: %s", export.Vehicle))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", export.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Fee (%s): %s", export.Currency, toll.TotalFee(export.Reports).StringFixed(2)))
	pdf.Ln(8)

	for _, report := range export.Reports {
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("%s  (%s %s)", report.Date, report.TotalFee().StringFixed(2), export.Currency))
		pdf.Ln(6)
		pdf.CellFormat(15, 6, "Win", "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, "Time", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Potential", "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, "Charged", "1", 0, "C", false, 0, "")
		pdf.CellFormat(95, 6, "Classification", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for w, window := range report.Windows {
			for _, passage := range window {
				pdf.CellFormat(15, 6, fmt.Sprintf("%d", w+1), "1", 0, "C", false, 0, "")
				pdf.CellFormat(20, 6, toll.TimeOfDayOf(passage.At).String(), "1", 0, "C", false, 0, "")
				pdf.CellFormat(25, 6, passage.PotentialFee.StringFixed(2), "1", 0, "R", false, 0, "")
				pdf.CellFormat(25, 6, passage.ChargedFee.StringFixed(2), "1", 0, "R", false, 0, "")
				pdf.CellFormat(95, 6, KindLabel(passage.Kind), "1", 0, "L", false, 0, "")
				pdf.Ln(-1)
			}
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a summary sheet, one row per day, and a
// passages sheet, one row per passage.
func BuildReportXLSX(export ReportExport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summarySheet := "summary"
	daysSheet := "days"
	passagesSheet := "passages"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(daysSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(passagesSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Toll Report")
	_ = f.SetCellValue(summarySheet, "A3", "Vehicle")
	_ = f.SetCellValue(summarySheet, "B3", string(export.Vehicle))
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", export.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Days")
	_ = f.SetCellValue(summarySheet, "B5", len(export.Reports))
	_ = f.SetCellValue(summarySheet, "A6", "Total Fee")
	_ = f.SetCellValue(summarySheet, "B6", toll.TotalFee(export.Reports).InexactFloat64())
	_ = f.SetCellValue(summarySheet, "A7", "Currency")
	_ = f.SetCellValue(summarySheet, "B7", export.Currency)

	_ = f.SetCellValue(daysSheet, "A1", "Date")
	_ = f.SetCellValue(daysSheet, "B1", "Exemption")
	_ = f.SetCellValue(daysSheet, "C1", "Windows")
	_ = f.SetCellValue(daysSheet, "D1", "Total Fee")

	_ = f.SetCellValue(passagesSheet, "A1", "Date")
	_ = f.SetCellValue(passagesSheet, "B1", "Window")
	_ = f.SetCellValue(passagesSheet, "C1", "Time")
	_ = f.SetCellValue(passagesSheet, "D1", "Potential Fee")
	_ = f.SetCellValue(passagesSheet, "E1", "Charged Fee")
	_ = f.SetCellValue(passagesSheet, "F1", "Kind")
	_ = f.SetCellValue(passagesSheet, "G1", "Classification")

	row := 2
	for i, report := range export.Reports {
		date := report.Date.String()
		dayRow := i + 2
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("A%d", dayRow), date)
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("B%d", dayRow), report.Exemption.String())
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("C%d", dayRow), len(report.Windows))
		_ = f.SetCellValue(daysSheet, fmt.Sprintf("D%d", dayRow), report.TotalFee().InexactFloat64())

		for w, window := range report.Windows {
			for _, passage := range window {
				_ = f.SetCellValue(passagesSheet, fmt.Sprintf("A%d", row), date)
				_ = f.SetCellValue(passagesSheet, fmt.Sprintf("B%d", row), w+1)
				_ = f.SetCellValue(passagesSheet, fmt.Sprintf("C%d", row), toll.TimeOfDayOf(passage.At).String())
				_ = f.SetCellValue(passagesSheet, fmt.Sprintf("D%d", row), passage.PotentialFee.InexactFloat64())
				_ = f.SetCellValue(passagesSheet, fmt.Sprintf("E%d", row), passage.ChargedFee.InexactFloat64())
				_ = f.SetCellValue(passagesSheet, fmt.Sprintf("F%d", row), passage.Kind.String())
				_ = f.SetCellValue(passagesSheet, fmt.Sprintf("G%d", row), KindLabel(passage.Kind))
				row++
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
