package reports

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSchedule() ReportData {
	start := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	parent := uint(1)
	return ReportData{
		GroupName: "Lakeside runners",
		From:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		Schedule: []ScheduleRow{
			{EventID: 2, Title: "Morning run", Series: "Morning run", Location: "Pavilion", StartTime: start, EndTime: &end, IsActive: true, ParentEventID: &parent, Attendees: 4},
			{EventID: 9, Title: "Café social", StartTime: start.AddDate(0, 0, 2), IsActive: false},
		},
	}
}

func fixedExporter() *reportExporter {
	return &reportExporter{now: func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }}
}

func TestExportScheduleCSV(t *testing.T) {
	body, name, mime, err := fixedExporter().Export(ReportTypeSchedule, FormatCSV, sampleSchedule())
	require.NoError(t, err)
	assert.Equal(t, "schedule_report_20240101_090000.csv", name)
	assert.Equal(t, "text/csv", mime)

	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2", "Morning run", "Morning run", "Pavilion", "2024-01-03 10:00", "2024-01-03 11:30", "active", "4"}, records[1])
	assert.Equal(t, "cancelled", records[2][6])
	assert.Empty(t, records[2][5])
}

func TestExportScheduleExcel(t *testing.T) {
	body, name, _, err := fixedExporter().Export(ReportTypeSchedule, FormatExcel, sampleSchedule())
	require.NoError(t, err)
	assert.Equal(t, "schedule_report_20240101_090000.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Schedule")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Title", rows[0][1])
	assert.Equal(t, "Café social", rows[2][1])
}

func TestExportPDF(t *testing.T) {
	data := sampleSchedule()
	for i := 0; i < 60; i++ {
		data.Schedule = append(data.Schedule, data.Schedule[0])
	}
	body, _, mime, err := fixedExporter().Export(ReportTypeSchedule, FormatPDF, data)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))

	empty, _, _, err := fixedExporter().Export(ReportTypeAuditLogs, FormatPDF, ReportData{GroupName: "g"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(empty, []byte("%PDF-")))
}

func TestExportRejectsUnknown(t *testing.T) {
	_, _, _, err := fixedExporter().Export("donations", FormatCSV, ReportData{})
	assert.Error(t, err)

	_, _, _, err = fixedExporter().Export(ReportTypeSchedule, "docx", ReportData{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
