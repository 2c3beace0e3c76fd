package report

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"gulfsolar/backend/services/calculator-service/internal/estimator"
	"gulfsolar/backend/services/calculator-service/internal/format"
	"gulfsolar/backend/services/calculator-service/internal/models"
	"gulfsolar/backend/services/calculator-service/internal/settings"
)

// LeadsSheet is the sheet name used by LeadsXLSX.
const LeadsSheet = "leads"

var leadColumns = []string{
	"ID", "Created", "Email", "Monthly bill", "Roof", "Home during day", "Status",
	"Upfront cost low", "Upfront cost high", "Annual savings low", "Annual savings high",
}

// EstimatePDF renders a one-page breakdown of an estimate.
func EstimatePDF(s settings.Settings, in estimator.Input, out estimator.Output, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Solar savings estimate", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Solar savings estimate")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if s.RegionLabel != "" {
		pdf.Cell(0, 6, tr(s.RegionLabel))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.UTC().Format("2006-01-02")))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 6, "Your home")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	homeDuringDay := "No"
	if in.HomeDuringDay {
		homeDuringDay = "Yes"
	}
	inputs := [][2]string{
		{"Monthly power bill", format.Currency(in.MonthlyBill, s.Currency)},
		{"Roof type", string(in.RoofType)},
		{"Home during the day", homeDuringDay},
	}
	for _, row := range inputs {
		pdf.CellFormat(70, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, tr(row[1]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	display := format.FromOutput(out, s.Currency)
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 6, "Estimate")
	pdf.Ln(7)
	pdf.SetFont("Arial", "", 10)
	results := [][2]string{
		{"System size", display.SystemSize},
		{"Upfront cost", display.UpfrontCost},
		{"Monthly savings", display.MonthlySavings},
		{"Annual savings", display.AnnualSavings},
		{"Payback", display.Payback},
		{"Oil not burned", display.OilNotBurned},
	}
	for _, row := range results {
		pdf.CellFormat(70, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, tr(row[1]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(s.Assumptions) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 6, "Assumptions")
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 9)
		for _, line := range s.Assumptions {
			pdf.MultiCell(0, 5, tr("- "+line), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LeadsXLSX renders leads as a single-sheet workbook.
func LeadsXLSX(leads []models.Lead) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", LeadsSheet); err != nil {
		return nil, err
	}

	for i, title := range leadColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(LeadsSheet, cell, title)
	}

	for i, lead := range leads {
		row := i + 2
		values := []interface{}{
			lead.ID,
			lead.CreatedAt.UTC().Format(time.RFC3339),
			lead.Email,
			cellNumber(lead.Inputs.MonthlyBill),
			string(lead.Inputs.RoofType),
			lead.Inputs.HomeDuringDay,
			string(lead.Status),
			cellNumber(math.Round(lead.Outputs.UpfrontCost.Low)),
			cellNumber(math.Round(lead.Outputs.UpfrontCost.High)),
			cellNumber(math.Round(lead.Outputs.AnnualSavings.Low)),
			cellNumber(math.Round(lead.Outputs.AnnualSavings.High)),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(LeadsSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cellNumber leaves non-finite values blank; spreadsheets cannot hold NaN or Inf.
func cellNumber(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return v
}
