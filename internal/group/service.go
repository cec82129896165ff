package group

import (
	"context"
	"errors"
	"strings"

	"github.com/sharath018/community-events-backend/internal/auditlog"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrNotMember       = errors.New("not a member of this group")
	ErrAlreadyMember   = errors.New("already a member of this group")
	ErrInvalidRole     = errors.New("role must be organizer, admin or member")
	ErrLastOrganizer   = errors.New("a group needs at least one organizer")
	ErrMissingName     = errors.New("group name is required")
	ErrLocationMissing = errors.New("location not found in this group")
)

type Service struct {
	Repo     Store
	AuditSvc auditlog.Service
}

func NewService(repo Store, auditSvc auditlog.Service) *Service {
	return &Service{Repo: repo, AuditSvc: auditSvc}
}

type CreateGroupInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Privacy     string `json:"privacy" example:"public"`
}

// ===========================
// 🏘 Groups

func (s *Service) CreateGroup(ctx context.Context, in CreateGroupInput, userID uint, ip string) (*Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrMissingName
	}
	privacy := strings.ToLower(strings.TrimSpace(in.Privacy))
	if privacy != PrivacyPrivate {
		privacy = PrivacyPublic
	}

	g := &Group{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Privacy:     privacy,
		CreatedBy:   userID,
		IsActive:    true,
	}
	if err := s.Repo.CreateGroup(ctx, g); err != nil {
		s.audit(ctx, userID, nil, "GROUP_CREATE_FAILED", map[string]interface{}{"name": name, "error": err.Error()}, ip, "failure")
		return nil, err
	}

	s.audit(ctx, userID, &g.ID, "GROUP_CREATED", map[string]interface{}{"name": g.Name, "privacy": g.Privacy}, ip, "success")
	return g, nil
}

func (s *Service) GetGroup(ctx context.Context, groupID, userID uint) (*Group, error) {
	g, err := s.Repo.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	ok, err := s.CanView(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return g, nil
}

func (s *Service) ListMyGroups(ctx context.Context, userID uint) ([]Group, error) {
	return s.Repo.ListGroupsForUser(ctx, userID)
}

func (s *Service) DiscoverGroups(ctx context.Context, search string, page, limit int) ([]Group, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return s.Repo.ListPublicGroups(ctx, strings.TrimSpace(search), limit, (page-1)*limit)
}

// ===========================
// 👥 Membership

// JoinGroup adds userID to a group. Public groups activate the membership
// immediately; private groups leave it pending until a manager approves.
func (s *Service) JoinGroup(ctx context.Context, groupID, userID uint, ip string) (*Membership, error) {
	g, err := s.Repo.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if existing, err := s.Repo.GetMembership(ctx, groupID, userID); err == nil && existing != nil {
		return existing, ErrAlreadyMember
	}

	status := StatusActive
	if g.Privacy == PrivacyPrivate {
		status = StatusPending
	}
	m := &Membership{GroupID: groupID, UserID: userID, Role: RoleMember, Status: status}
	if err := s.Repo.AddMember(ctx, m); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyMember
		}
		return nil, err
	}

	s.audit(ctx, userID, &groupID, "GROUP_JOINED", map[string]interface{}{"status": status}, ip, "success")
	return m, nil
}

func (s *Service) LeaveGroup(ctx context.Context, groupID, userID uint, ip string) error {
	m, err := s.Repo.GetMembership(ctx, groupID, userID)
	if err != nil {
		return ErrNotMember
	}
	if m.Role == RoleOrganizer {
		if err := s.ensureAnotherOrganizer(ctx, groupID, userID); err != nil {
			return err
		}
	}
	if err := s.Repo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.audit(ctx, userID, &groupID, "GROUP_LEFT", nil, ip, "success")
	return nil
}

// UpdateMember changes a member's role or approves a pending membership.
// The route guards it with RequireGroupWriteAccess.
func (s *Service) UpdateMember(ctx context.Context, groupID, actorID, targetID uint, role, status, ip string) error {
	target, err := s.Repo.GetMembership(ctx, groupID, targetID)
	if err != nil {
		return ErrNotMember
	}

	updates := map[string]interface{}{}
	if role != "" {
		role = strings.ToLower(role)
		if role != RoleOrganizer && role != RoleAdmin && role != RoleMember {
			return ErrInvalidRole
		}
		if target.Role == RoleOrganizer && role != RoleOrganizer {
			if err := s.ensureAnotherOrganizer(ctx, groupID, targetID); err != nil {
				return err
			}
		}
		updates["role"] = role
	}
	if status == StatusActive {
		updates["status"] = StatusActive
	}
	if len(updates) == 0 {
		return nil
	}

	if err := s.Repo.UpdateMembership(ctx, groupID, targetID, updates); err != nil {
		s.audit(ctx, actorID, &groupID, "GROUP_MEMBER_UPDATE_FAILED", map[string]interface{}{"target_user_id": targetID, "error": err.Error()}, ip, "failure")
		return err
	}
	details := map[string]interface{}{"target_user_id": targetID}
	for k, v := range updates {
		details[k] = v
	}
	s.audit(ctx, actorID, &groupID, "GROUP_MEMBER_UPDATED", details, ip, "success")
	return nil
}

func (s *Service) ListMembers(ctx context.Context, groupID, userID uint) ([]MemberDTO, error) {
	ok, err := s.CanView(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return s.Repo.ListMembers(ctx, groupID)
}

func (s *Service) ensureAnotherOrganizer(ctx context.Context, groupID, userID uint) error {
	members, err := s.Repo.ListMembers(ctx, groupID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.UserID != userID && m.Role == RoleOrganizer && m.Status == StatusActive {
			return nil
		}
	}
	return ErrLastOrganizer
}

// ===========================
// 🔐 Access

// HasAccess reports whether userID may manage events of groupID: an active
// organizer or admin membership.
func (s *Service) HasAccess(ctx context.Context, groupID, userID uint) (bool, error) {
	m, err := s.Repo.GetMembership(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.Status == StatusActive && IsManagerRole(m.Role), nil
}

// CanView reports whether userID may read the group's events: any active
// member, or anyone when the group is public.
func (s *Service) CanView(ctx context.Context, groupID, userID uint) (bool, error) {
	m, err := s.Repo.GetMembership(ctx, groupID, userID)
	if err == nil && m.Status == StatusActive {
		return true, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	g, err := s.Repo.GetGroupByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return g.Privacy == PrivacyPublic, nil
}

// ===========================
// 📍 Locations

type CreateLocationInput struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
}

// CreateLocation is guarded by RequireGroupWriteAccess on its route.
func (s *Service) CreateLocation(ctx context.Context, groupID, userID uint, in CreateLocationInput, ip string) (*Location, error) {
	loc := &Location{GroupID: groupID, Name: strings.TrimSpace(in.Name), Address: strings.TrimSpace(in.Address)}
	if loc.Name == "" {
		return nil, errors.New("location name is required")
	}
	if err := s.Repo.CreateLocation(ctx, loc); err != nil {
		return nil, err
	}
	s.audit(ctx, userID, &groupID, "LOCATION_CREATED", map[string]interface{}{"location_id": loc.ID, "name": loc.Name}, ip, "success")
	return loc, nil
}

func (s *Service) ListLocations(ctx context.Context, groupID, userID uint) ([]Location, error) {
	ok, err := s.CanView(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}
	return s.Repo.ListLocations(ctx, groupID)
}

// ResolveLocation returns the location when it belongs to groupID.
func (s *Service) ResolveLocation(ctx context.Context, groupID, locationID uint) (*Location, error) {
	loc, err := s.Repo.GetLocation(ctx, locationID)
	if err != nil || loc.GroupID != groupID {
		return nil, ErrLocationMissing
	}
	return loc, nil
}

// LocationName is ResolveLocation for callers that only display the name.
func (s *Service) LocationName(ctx context.Context, groupID, locationID uint) (string, error) {
	loc, err := s.ResolveLocation(ctx, groupID, locationID)
	if err != nil {
		return "", err
	}
	return loc.Name, nil
}

func (s *Service) audit(ctx context.Context, userID uint, groupID *uint, action string, details map[string]interface{}, ip, status string) {
	if s.AuditSvc == nil {
		return
	}
	if err := s.AuditSvc.LogAction(ctx, &userID, groupID, action, details, ip, status); err != nil {
		utils.Log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
