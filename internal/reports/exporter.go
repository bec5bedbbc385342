package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Exporter renders a summary into a downloadable document
type Exporter interface {
	Export(format string, summary *Summary) ([]byte, string, string, error)
}

type exporter struct{}

func NewExporter() Exporter {
	return &exporter{}
}

// Export returns the rendered bytes, a filename, and a content type
func (e *exporter) Export(format string, summary *Summary) ([]byte, string, string, error) {
	timestamp := time.Now().Format("20060102_150405")

	switch format {
	case FormatCSV:
		data, err := e.exportCSV(summary)
		if err != nil {
			return nil, "", "", err
		}
		filename := fmt.Sprintf("pipeline_report_%s.csv", timestamp)
		return data, filename, "text/csv", nil

	case FormatExcel:
		data, err := e.exportExcel(summary)
		if err != nil {
			return nil, "", "", err
		}
		filename := fmt.Sprintf("pipeline_report_%s.xlsx", timestamp)
		return data, filename, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil

	case FormatPDF:
		data, err := e.exportPDF(summary)
		if err != nil {
			return nil, "", "", err
		}
		filename := fmt.Sprintf("pipeline_report_%s.pdf", timestamp)
		return data, filename, "application/pdf", nil

	default:
		return nil, "", "", fmt.Errorf("unsupported report format: %s", format)
	}
}

func (e *exporter) exportCSV(summary *Summary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Event ID", "Title", "Status", "Confirmation Number", "Message", "Attempted At"}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}

	for _, o := range summary.Outcomes {
		record := []string{
			strconv.FormatUint(uint64(o.EventID), 10),
			o.Title,
			o.Status,
			o.ConfirmationNumber,
			o.Message,
			o.AttemptedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (e *exporter) exportExcel(summary *Summary) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Pipeline Outcomes"
	f.SetSheetName("Sheet1", sheetName)

	headers := []string{"Event ID", "Title", "Status", "Confirmation Number", "Message", "Attempted At"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, o := range summary.Outcomes {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), o.EventID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), o.Title)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), o.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), o.ConfirmationNumber)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), o.Message)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), o.AttemptedAt.Format("2006-01-02 15:04:05"))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *exporter) exportPDF(summary *Summary) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Family Events Pipeline Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s to %s",
		summary.WindowStart.Format("2006-01-02 15:04"),
		summary.WindowEnd.Format("2006-01-02 15:04")))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Attempts: %d   Registered: %d   Manual required: %d",
		summary.TotalAttempts, summary.Registered, summary.ManualRequired))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	widths := []float64{20, 80, 35, 40, 65, 35}
	headers := []string{"Event ID", "Title", "Status", "Confirmation", "Message", "Attempted At"}

	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, o := range summary.Outcomes {
		title := o.Title
		if len(title) > 45 {
			title = title[:42] + "..."
		}
		message := o.Message
		if len(message) > 38 {
			message = message[:35] + "..."
		}

		pdf.CellFormat(widths[0], 6, strconv.FormatUint(uint64(o.EventID), 10), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, title, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, o.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 6, o.ConfirmationNumber, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], 6, message, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[5], 6, o.AttemptedAt.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
