package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Service interface {
	LogAction(ctx context.Context, userID *uint, groupID *uint, action string, details map[string]interface{}, ip string, status string) error
	GetAuditLogs(ctx context.Context, filter AuditLogFilter) (*PaginatedAuditLogs, error)
	GetAuditLogByID(ctx context.Context, id uint) (*AuditLogResponse, error)
	GetStats(ctx context.Context, groupID *uint, since time.Time) (*AuditStats, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// LogAction records one action; details are stored as JSON.
func (s *service) LogAction(ctx context.Context, userID *uint, groupID *uint, action string, details map[string]interface{}, ip string, status string) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	return s.repo.Create(ctx, &AuditLog{
		UserID:    userID,
		GroupID:   groupID,
		Action:    action,
		Details:   string(detailsJSON),
		IPAddress: ip,
		Status:    status,
	})
}

func (s *service) GetAuditLogs(ctx context.Context, filter AuditLogFilter) (*PaginatedAuditLogs, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	logs, total, err := s.repo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &PaginatedAuditLogs{
		Data:       logs,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int((total + int64(filter.Limit) - 1) / int64(filter.Limit)),
	}, nil
}

func (s *service) GetAuditLogByID(ctx context.Context, id uint) (*AuditLogResponse, error) {
	log, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("audit log not found: %w", err)
	}
	return log, nil
}

func (s *service) GetStats(ctx context.Context, groupID *uint, since time.Time) (*AuditStats, error) {
	rows, err := s.repo.CountByAction(ctx, groupID, since)
	if err != nil {
		return nil, err
	}
	stats := &AuditStats{ActionBreakdown: map[string]int64{}}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ActionBreakdown[row.Action] += row.Count
		if row.Status == "success" {
			stats.SuccessCount += row.Count
		} else {
			stats.FailureCount += row.Count
		}
	}
	return stats, nil
}
