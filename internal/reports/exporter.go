package reports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	mimeCSV   = "text/csv"
	mimeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimePDF   = "application/pdf"

	dateTimeLayout = "2006-01-02 15:04"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// ReportExporter renders report rows as a downloadable file.
type ReportExporter interface {
	Export(reportType, format string, data ReportData) ([]byte, string, string, error)
}

type reportExporter struct {
	now func() time.Time
}

func NewReportExporter() ReportExporter {
	return &reportExporter{now: time.Now}
}

// table is the format-independent shape every report is reduced to.
type table struct {
	title   string
	sheet   string
	headers []string
	widths  []float64 // PDF column widths in mm
	rows    [][]string
}

// Export returns the file body, its filename and its content type.
func (e *reportExporter) Export(reportType, format string, data ReportData) ([]byte, string, string, error) {
	var t table
	switch reportType {
	case ReportTypeSchedule:
		t = scheduleTable(data)
	case ReportTypeAuditLogs:
		t = auditTable(data)
	default:
		return nil, "", "", fmt.Errorf("unsupported report type: %s", reportType)
	}

	base := fmt.Sprintf("%s_report_%s", reportType, e.now().Format("20060102_150405"))
	switch format {
	case FormatCSV, "":
		out, err := t.csv()
		return out, base + ".csv", mimeCSV, err
	case FormatExcel:
		out, err := t.excel()
		return out, base + ".xlsx", mimeExcel, err
	case FormatPDF:
		out, err := t.pdf()
		return out, base + ".pdf", mimePDF, err
	default:
		return nil, "", "", fmt.Errorf("%w for %s: %s", ErrUnsupportedFormat, reportType, format)
	}
}

//// ============================
/// SCHEDULE
//// ============================

func scheduleTable(data ReportData) table {
	t := table{
		title:   fmt.Sprintf("%s schedule, %s to %s", data.GroupName, data.From.Format("2006-01-02"), data.To.AddDate(0, 0, -1).Format("2006-01-02")),
		sheet:   "Schedule",
		headers: []string{"ID", "Title", "Series", "Location", "Start", "End", "Status", "Attendees"},
		widths:  []float64{14, 60, 45, 55, 30, 30, 20, 20},
	}
	for _, r := range data.Schedule {
		end := ""
		if r.EndTime != nil {
			end = r.EndTime.Format(dateTimeLayout)
		}
		status := "active"
		if !r.IsActive {
			status = "cancelled"
		}
		t.rows = append(t.rows, []string{
			strconv.FormatUint(uint64(r.EventID), 10),
			r.Title,
			r.Series,
			r.Location,
			r.StartTime.Format(dateTimeLayout),
			end,
			status,
			strconv.FormatInt(r.Attendees, 10),
		})
	}
	return t
}

//// ============================
/// AUDIT LOGS
//// ============================

func auditTable(data ReportData) table {
	t := table{
		title:   fmt.Sprintf("%s audit log", data.GroupName),
		sheet:   "Audit Logs",
		headers: []string{"ID", "User", "Action", "Status", "IP Address", "Timestamp", "Details"},
		widths:  []float64{14, 40, 45, 20, 30, 32, 94},
	}
	for _, l := range data.AuditLogs {
		t.rows = append(t.rows, []string{
			strconv.FormatUint(uint64(l.ID), 10),
			l.UserName,
			l.Action,
			l.Status,
			l.IPAddress,
			l.Timestamp.Format("2006-01-02 15:04:05"),
			l.Details,
		})
	}
	return t
}

//// ============================
/// RENDERERS
//// ============================

func (t table) csv() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.headers); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t table) excel() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", t.sheet); err != nil {
		return nil, err
	}

	header := make([]interface{}, len(t.headers))
	for i, h := range t.headers {
		header[i] = h
	}
	if err := f.SetSheetRow(t.sheet, "A1", &header); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(t.headers))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(t.sheet, "A1", lastCol+"1", bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(t.sheet, "A", lastCol, 20); err != nil {
		return nil, err
	}

	for i, r := range t.rows {
		row := make([]interface{}, len(r))
		for j, v := range r {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(t.sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t table) pdf() ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr(t.title), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(220, 230, 241)
		for i, h := range t.headers {
			pdf.CellFormat(t.widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, r := range t.rows {
		if pdf.GetY()+6 > pageHeight-bottom-12 {
			pdf.AddPage()
			writeHeader()
		}
		for i, v := range r {
			pdf.CellFormat(t.widths[i], 6, tr(truncate(pdf, v, t.widths[i])), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(t.rows) == 0 {
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(0, 8, "No entries in this range.", "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// truncate shortens s so it fits a cell of width mm.
func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > limit {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
