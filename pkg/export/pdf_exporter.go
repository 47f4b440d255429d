package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// TimetableCell is the content of one (period, day) coordinate in the grid.
type TimetableCell struct {
	Subject string
	Teacher string
}

// TimetableRow holds one period's wall-clock interval and its per-day cells.
type TimetableRow struct {
	Period int
	Start  string
	End    string
	Cells  []TimetableCell
}

// TimetableGrid is the printable weekly timetable for one class.
type TimetableGrid struct {
	Title string
	Days  []string
	Rows  []TimetableRow
}

// PDFExporter renders weekly timetable grids into PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws the grid in landscape with days as columns and periods as rows.
func (e *PDFExporter) Render(grid TimetableGrid) ([]byte, error) {
	if len(grid.Days) == 0 {
		return nil, fmt.Errorf("timetable grid requires at least one day")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if grid.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(grid.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	const timeColWidth = 35.0
	dayColWidth := (277.0 - timeColWidth) / float64(len(grid.Days))

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(timeColWidth, 8, "Period", "1", 0, "C", false, 0, "")
	for _, day := range grid.Days {
		pdf.CellFormat(dayColWidth, 8, day, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range grid.Rows {
		label := fmt.Sprintf("%d  %s-%s", row.Period, row.Start, row.End)
		pdf.CellFormat(timeColWidth, 10, label, "1", 0, "C", false, 0, "")
		for i := range grid.Days {
			var text string
			if i < len(row.Cells) && row.Cells[i].Subject != "" {
				text = row.Cells[i].Subject
				if row.Cells[i].Teacher != "" {
					text += " / " + row.Cells[i].Teacher
				}
			}
			pdf.CellFormat(dayColWidth, 10, text, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render timetable pdf: %w", err)
	}
	return buf.Bytes(), nil
}
