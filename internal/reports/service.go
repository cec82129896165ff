package reports

import (
	"context"
	"errors"
	"time"

	"github.com/sharath018/community-events-backend/internal/auditlog"
	"github.com/sharath018/community-events-backend/middleware"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
)

var (
	ErrAccessDenied    = errors.New("not allowed to export reports for this group")
	ErrUnsupportedType = errors.New("unsupported report type")
)

// auditExportLimit bounds a single audit log export.
const auditExportLimit = 5000

// GroupDirectory answers group membership questions; group.Service satisfies it.
type GroupDirectory interface {
	CanView(ctx context.Context, groupID, userID uint) (bool, error)
	HasAccess(ctx context.Context, groupID, userID uint) (bool, error)
}

// ScheduleFiller makes sure recurring templates have instances covering the
// exported range; event.Service satisfies it.
type ScheduleFiller interface {
	TopUpGroup(ctx context.Context, groupID uint) error
}

type Service interface {
	Export(ctx context.Context, groupID uint, req ReportRequest, ac middleware.AccessContext, ip string) ([]byte, string, string, error)
}

type service struct {
	repo     Repository
	groups   GroupDirectory
	filler   ScheduleFiller
	auditSvc auditlog.Service
	exporter ReportExporter
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, groups GroupDirectory, filler ScheduleFiller, auditSvc auditlog.Service, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:     repo,
		groups:   groups,
		filler:   filler,
		auditSvc: auditSvc,
		exporter: NewReportExporter(),
		loc:      loc,
		now:      time.Now,
	}
}

// Export renders the requested report for groupID. Any member may export the
// schedule; audit logs need organizer access.
func (s *service) Export(ctx context.Context, groupID uint, req ReportRequest, ac middleware.AccessContext, ip string) ([]byte, string, string, error) {
	if req.Type == "" {
		req.Type = ReportTypeSchedule
	}
	if req.Type != ReportTypeSchedule && req.Type != ReportTypeAuditLogs {
		return nil, "", "", ErrUnsupportedType
	}
	if err := s.authorize(ctx, groupID, req.Type, ac); err != nil {
		return nil, "", "", err
	}

	now := s.now().In(s.loc)
	from, to, err := GetDateRange(now, req.DateRange, req.StartDate, req.EndDate, req.Type == ReportTypeAuditLogs)
	if err != nil {
		return nil, "", "", err
	}

	name, err := s.repo.GroupName(ctx, groupID)
	if err != nil {
		return nil, "", "", err
	}
	data := ReportData{GroupName: name, From: from, To: to}

	switch req.Type {
	case ReportTypeSchedule:
		if err := s.filler.TopUpGroup(ctx, groupID); err != nil {
			utils.Log.Warn("top-up before export failed", zap.Uint("group_id", groupID), zap.Error(err))
		}
		rows, err := s.repo.ScheduleRows(ctx, groupID, from, to)
		if err != nil {
			return nil, "", "", err
		}
		for i := range rows {
			rows[i].StartTime = rows[i].StartTime.In(s.loc)
			if rows[i].EndTime != nil {
				end := rows[i].EndTime.In(s.loc)
				rows[i].EndTime = &end
			}
		}
		data.Schedule = rows
	case ReportTypeAuditLogs:
		logs, err := s.auditRows(ctx, groupID, from, to)
		if err != nil {
			return nil, "", "", err
		}
		data.AuditLogs = logs
	}

	body, filename, mime, err := s.exporter.Export(req.Type, req.Format, data)
	status := "success"
	if err != nil {
		status = "failure"
	}
	if s.auditSvc != nil {
		if aerr := s.auditSvc.LogAction(ctx, &ac.UserID, &groupID, "REPORT_EXPORTED", map[string]interface{}{
			"type":   req.Type,
			"format": req.Format,
			"from":   from,
			"to":     to,
			"rows":   len(data.Schedule) + len(data.AuditLogs),
		}, ip, status); aerr != nil {
			utils.Log.Warn("audit log failed", zap.String("action", "REPORT_EXPORTED"), zap.Error(aerr))
		}
	}
	return body, filename, mime, err
}

func (s *service) authorize(ctx context.Context, groupID uint, reportType string, ac middleware.AccessContext) error {
	if ac.IsPlatformAdmin() {
		return nil
	}
	check := s.groups.CanView
	if reportType == ReportTypeAuditLogs {
		check = s.groups.HasAccess
	}
	ok, err := check(ctx, groupID, ac.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccessDenied
	}
	return nil
}

func (s *service) auditRows(ctx context.Context, groupID uint, from, to time.Time) ([]AuditLogRow, error) {
	last := to.Add(-time.Second)
	page, err := s.auditSvc.GetAuditLogs(ctx, auditlog.AuditLogFilter{
		GroupID:  &groupID,
		FromDate: &from,
		ToDate:   &last,
		Page:     1,
		Limit:    auditExportLimit,
	})
	if err != nil {
		return nil, err
	}
	rows := make([]AuditLogRow, 0, len(page.Data))
	for _, l := range page.Data {
		row := AuditLogRow{
			ID:        l.ID,
			Action:    l.Action,
			Status:    l.Status,
			IPAddress: l.IPAddress,
			Timestamp: l.CreatedAt.In(s.loc),
			Details:   l.Details,
		}
		if l.UserName != nil {
			row.UserName = *l.UserName
		}
		rows = append(rows, row)
	}
	return rows, nil
}
