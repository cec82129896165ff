package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
)

// RecipientResolver finds the members of a group holding any of roles;
// group.Repository satisfies it.
type RecipientResolver interface {
	MemberIDsByRoles(ctx context.Context, groupID uint, roles []string) ([]uint, error)
}

// JobQueue hands fan-out jobs to an asynchronous worker.
type JobQueue interface {
	Publish(ctx context.Context, key string, v interface{}) error
}

type kafkaQueue struct{}

func (kafkaQueue) Publish(ctx context.Context, key string, v interface{}) error {
	return utils.PublishJSON(ctx, key, v)
}

type Service interface {
	CreateInAppNotification(ctx context.Context, userID, groupID uint, title, message, category string) error
	ListInAppByUser(ctx context.Context, userID uint, groupID *uint, unreadOnly bool, limit int) ([]InAppNotification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkInAppAsRead(ctx context.Context, id uint, userID uint) error
	MarkAllAsRead(ctx context.Context, userID uint) (int64, error)

	// Fan-out helpers
	CreateInAppForGroupRoles(ctx context.Context, groupID uint, roles []string, title, message, category string) error
	StartConsumer(ctx context.Context)
}

type service struct {
	repo       Repository
	recipients RecipientResolver
	queue      JobQueue
	now        func() time.Time
}

// NewService queues role fan-outs on Kafka when a writer is configured and
// delivers them inline otherwise.
func NewService(repo Repository, recipients RecipientResolver) Service {
	s := &service{
		repo:       repo,
		recipients: recipients,
		now:        time.Now,
	}
	if utils.KafkaEnabled() {
		s.queue = kafkaQueue{}
	}
	return s
}

func userChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// CreateInAppNotification stores a bell notification and pushes it to any
// open stream for the user.
func (s *service) CreateInAppNotification(ctx context.Context, userID, groupID uint, title, message, category string) error {
	now := s.now()
	item := &InAppNotification{
		UserID:    userID,
		GroupID:   groupID,
		Title:     title,
		Message:   message,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateInApp(ctx, item); err != nil {
		return err
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return nil
	}
	if err := utils.Publish(ctx, userChannel(userID), string(payload)); err != nil {
		utils.Log.Warn("in-app publish failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *service) ListInAppByUser(ctx context.Context, userID uint, groupID *uint, unreadOnly bool, limit int) ([]InAppNotification, error) {
	return s.repo.ListInAppByUser(ctx, userID, groupID, unreadOnly, limit)
}

func (s *service) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *service) MarkInAppAsRead(ctx context.Context, id uint, userID uint) error {
	return s.repo.MarkInAppAsRead(ctx, id, userID)
}

func (s *service) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// CreateInAppForGroupRoles notifies every member of groupID holding one of
// roles. With a queue configured the job is published and delivered by the
// consumer; if publishing fails it is delivered inline.
func (s *service) CreateInAppForGroupRoles(ctx context.Context, groupID uint, roles []string, title, message, category string) error {
	job := fanoutJob{GroupID: groupID, Roles: roles, Title: title, Message: message, Category: category}
	if s.queue != nil {
		err := s.queue.Publish(ctx, fmt.Sprintf("group:%d", groupID), job)
		if err == nil {
			return nil
		}
		utils.Log.Warn("fan-out enqueue failed, delivering inline", zap.Uint("group_id", groupID), zap.Error(err))
	}
	return s.deliver(ctx, job)
}

func (s *service) deliver(ctx context.Context, job fanoutJob) error {
	ids, err := s.recipients.MemberIDsByRoles(ctx, job.GroupID, job.Roles)
	if err != nil {
		return err
	}
	seen := make(map[uint]struct{}, len(ids))
	for _, uid := range ids {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		if err := s.CreateInAppNotification(ctx, uid, job.GroupID, job.Title, job.Message, job.Category); err != nil {
			utils.Log.Warn("in-app fan-out failed", zap.Uint("user_id", uid), zap.Error(err))
		}
	}
	return nil
}
