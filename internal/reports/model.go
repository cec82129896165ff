package reports

import "time"

const (
	ReportTypeSchedule  = "schedule"
	ReportTypeAuditLogs = "audit-logs"

	// Date range presets. Schedule ranges look forward from today, audit
	// ranges look back.
	DateRangeDaily   = "daily"
	DateRangeWeekly  = "weekly"
	DateRangeMonthly = "monthly"
	DateRangeCustom  = "custom"

	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

// ReportRequest is bound from the export query string.
type ReportRequest struct {
	Type      string `form:"type"`
	Format    string `form:"format"`
	DateRange string `form:"date_range"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// ScheduleRow is one attendable occurrence in a group's schedule.
type ScheduleRow struct {
	EventID       uint       `json:"event_id"`
	Title         string     `json:"title"`
	Location      string     `json:"location"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	IsActive      bool       `json:"is_active"`
	ParentEventID *uint      `json:"parent_event_id"`
	Series        string     `json:"series"` // template title for instances
	Attendees     int64      `json:"attendees"`
}

type AuditLogRow struct {
	ID        uint
	UserName  string
	Action    string
	Status    string
	IPAddress string
	Timestamp time.Time
	Details   string
}

// ReportData carries the rows for whichever report is being exported.
type ReportData struct {
	GroupName string
	From, To  time.Time
	Schedule  []ScheduleRow
	AuditLogs []AuditLogRow
}
