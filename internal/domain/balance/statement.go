package balance

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type StatementHolder struct {
	Name         string
	EmployeeCode string
	Email        string
}

// RenderStatement writes a one-page PDF summarising b for the holder.
func RenderStatement(w io.Writer, holder StatementHolder, b EmployeeBalance, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Balance statement %d", b.Year))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s (%s)", holder.Name, holder.EmployeeCode))
	pdf.Ln(7)
	if holder.Email != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Email: %s", holder.Email))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format("2006-01-02 15:04 MST")))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 11)
	for _, header := range []string{"Pool", "Total", "Used", "Remaining"} {
		pdf.CellFormat(45, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	rows := [][]string{
		{"Vacation (days)", itoa(b.VacationDaysTotal), itoa(b.VacationDaysUsed), itoa(b.VacationDaysRemaining())},
		{"Work from home (days)", itoa(b.WFHDaysTotal), itoa(b.WFHDaysUsed), itoa(b.WFHDaysRemaining())},
		{"Late/early (h:mm)", hours(b.LateEarlyMinutesTotal), hours(b.LateEarlyMinutesUsed), hours(b.LateEarlyMinutesRemaining())},
	}
	for _, row := range rows {
		pdf.CellFormat(45, 8, row[0], "1", 0, "L", false, 0, "")
		for _, cell := range row[1:] {
			pdf.CellFormat(45, 8, cell, "1", 0, "R", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

func itoa(v int) string {
	return fmt.Sprintf("%d", v)
}

func hours(minutes int) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}
