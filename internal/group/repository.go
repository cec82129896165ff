package group

import (
	"context"

	"gorm.io/gorm"
)

// Store is the persistence the group service needs.
type Store interface {
	CreateGroup(ctx context.Context, g *Group) error
	GetGroupByID(ctx context.Context, id uint) (*Group, error)
	ListGroupsForUser(ctx context.Context, userID uint) ([]Group, error)
	ListPublicGroups(ctx context.Context, search string, limit, offset int) ([]Group, int64, error)
	GetMembership(ctx context.Context, groupID, userID uint) (*Membership, error)
	AddMember(ctx context.Context, m *Membership) error
	UpdateMembership(ctx context.Context, groupID, userID uint, updates map[string]interface{}) error
	RemoveMember(ctx context.Context, groupID, userID uint) error
	ListMembers(ctx context.Context, groupID uint) ([]MemberDTO, error)
	CreateLocation(ctx context.Context, l *Location) error
	ListLocations(ctx context.Context, groupID uint) ([]Location, error)
	GetLocation(ctx context.Context, id uint) (*Location, error)
}

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// CreateGroup stores the group and makes its creator the organizer.
func (r *Repository) CreateGroup(ctx context.Context, g *Group) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(g).Error; err != nil {
			return err
		}
		return tx.Create(&Membership{
			GroupID: g.ID,
			UserID:  g.CreatedBy,
			Role:    RoleOrganizer,
			Status:  StatusActive,
		}).Error
	})
}

func (r *Repository) GetGroupByID(ctx context.Context, id uint) (*Group, error) {
	var g Group
	if err := r.DB.WithContext(ctx).First(&g, id).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repository) ListGroupsForUser(ctx context.Context, userID uint) ([]Group, error) {
	var groups []Group
	err := r.DB.WithContext(ctx).
		Joins("JOIN group_memberships gm ON gm.group_id = groups.id").
		Where("gm.user_id = ? AND gm.status = ?", userID, StatusActive).
		Order("groups.name ASC").
		Find(&groups).Error
	return groups, err
}

func (r *Repository) ListPublicGroups(ctx context.Context, search string, limit, offset int) ([]Group, int64, error) {
	var (
		groups []Group
		total  int64
	)
	q := r.DB.WithContext(ctx).Model(&Group{}).Where("privacy = ? AND is_active = ?", PrivacyPublic, true)
	if search != "" {
		q = q.Where("name ILIKE ?", "%"+search+"%")
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&groups).Error
	return groups, total, err
}

func (r *Repository) GetMembership(ctx context.Context, groupID, userID uint) (*Membership, error) {
	var m Membership
	err := r.DB.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) AddMember(ctx context.Context, m *Membership) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *Repository) UpdateMembership(ctx context.Context, groupID, userID uint, updates map[string]interface{}) error {
	res := r.DB.WithContext(ctx).Model(&Membership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) RemoveMember(ctx context.Context, groupID, userID uint) error {
	return r.DB.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&Membership{}).Error
}

func (r *Repository) ListMembers(ctx context.Context, groupID uint) ([]MemberDTO, error) {
	var members []MemberDTO
	err := r.DB.WithContext(ctx).
		Table("group_memberships gm").
		Select("gm.user_id, u.full_name, u.email, gm.role, gm.status, gm.joined_at").
		Joins("JOIN users u ON u.id = gm.user_id").
		Where("gm.group_id = ?", groupID).
		Order("gm.joined_at ASC").
		Scan(&members).Error
	return members, err
}

// MemberIDsByRoles returns active members holding any of roles; an empty
// roles slice means every active member.
func (r *Repository) MemberIDsByRoles(ctx context.Context, groupID uint, roles []string) ([]uint, error) {
	var ids []uint
	q := r.DB.WithContext(ctx).Model(&Membership{}).
		Where("group_id = ? AND status = ?", groupID, StatusActive)
	if len(roles) > 0 {
		q = q.Where("role IN ?", roles)
	}
	err := q.Pluck("user_id", &ids).Error
	return ids, err
}

func (r *Repository) CreateLocation(ctx context.Context, l *Location) error {
	return r.DB.WithContext(ctx).Create(l).Error
}

func (r *Repository) ListLocations(ctx context.Context, groupID uint) ([]Location, error) {
	var locs []Location
	err := r.DB.WithContext(ctx).Where("group_id = ?", groupID).Order("name ASC").Find(&locs).Error
	return locs, err
}

func (r *Repository) GetLocation(ctx context.Context, id uint) (*Location, error) {
	var l Location
	if err := r.DB.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}
