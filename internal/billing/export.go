package billing

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// ExportPDF renders a statement as a one-page A4 PDF.
func ExportPDF(st *Statement) ([]byte, error) {
	sum := st.Summary
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Electricity Bill Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Consumer: %s <%s>", st.User.Username, st.User.Email),
		fmt.Sprintf("Category: %s (%s)", sum.Category, sum.Category.Description()),
		fmt.Sprintf("Generated: %s", sum.GeneratedAt.Format(time.RFC3339)),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}

	pdf.Ln(4)
	for _, line := range []string{
		fmt.Sprintf("Total units (kWh): %.3f", sum.TotalUnits),
		fmt.Sprintf("Slab: %s at Rs %.2f/kWh", sum.SlabLabel, sum.RatePerUnit),
		fmt.Sprintf("Energy charge (Rs): %.2f", sum.EnergyCost),
		fmt.Sprintf("Fixed charge (Rs): %.2f", sum.FixedCharge),
		fmt.Sprintf("Total bill (Rs): %.2f", sum.TotalCost),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Appliance", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Watts", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Duration", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "kWh", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Cost (Rs)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, ev := range st.Events {
		pdf.CellFormat(35, 6, ev.CreatedAt.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, ev.ApplianceName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.0f", ev.PowerWatts), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%dh %02dm", ev.Hours, ev.Minutes), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%.3f", ev.Units), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", ev.TotalCost), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportXLSX renders a statement as a workbook with a Summary and a Usage
// sheet.
func ExportXLSX(st *Statement) ([]byte, error) {
	sum := st.Summary
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	const usageSheet = "Usage"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(usageSheet); err != nil {
		return nil, err
	}

	rows := [][]interface{}{
		{"Electricity Bill Statement"},
		{},
		{"Consumer", st.User.Email},
		{"Category", string(sum.Category)},
		{"Total units (kWh)", sum.TotalUnits},
		{"Slab", sum.SlabLabel},
		{"Rate per unit", sum.RatePerUnit},
		{"Energy charge", sum.EnergyCost},
		{"Fixed charge", sum.FixedCharge},
		{"Total bill", sum.TotalCost},
		{"Events", sum.Events},
		{"Generated", sum.GeneratedAt.Format(time.RFC3339)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	header := []interface{}{"Date", "Appliance", "Watts", "Hours", "Minutes", "kWh", "Rate", "Energy cost", "Fixed charge", "Total cost"}
	if err := f.SetSheetRow(usageSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, ev := range st.Events {
		row := []interface{}{
			ev.CreatedAt.Format("2006-01-02 15:04"),
			ev.ApplianceName,
			ev.PowerWatts,
			ev.Hours,
			ev.Minutes,
			ev.Units,
			ev.RatePerUnit,
			ev.EnergyCost,
			ev.FixedCharge,
			ev.TotalCost,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(usageSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
