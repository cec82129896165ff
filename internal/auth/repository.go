package auth

import (
	"strings"

	"gorm.io/gorm"
)

type Repository interface {
	Create(user *User) error
	FindByEmail(email string) (*User, error)
	FindByID(userID uint) (User, error)
	FindRoleByName(name string) (*UserRole, error)
	Update(user *User) error
	GetPublicRoles() ([]UserRole, error)
}

type repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(user *User) error {
	return r.db.Create(user).Error
}

// Find user by email (login)
func (r *repository) FindByEmail(email string) (*User, error) {
	var u User
	err := r.db.Preload("Role").Where("LOWER(email) = ?", strings.ToLower(email)).First(&u).Error
	return &u, err
}

func (r *repository) FindByID(userID uint) (User, error) {
	var user User
	err := r.db.Preload("Role").First(&user, userID).Error
	return user, err
}

func (r *repository) FindRoleByName(name string) (*UserRole, error) {
	var role UserRole
	err := r.db.Where("role_name = ?", name).First(&role).Error
	return &role, err
}

func (r *repository) Update(user *User) error {
	return r.db.Save(user).Error
}

// Roles a visitor may pick at sign-up.
func (r *repository) GetPublicRoles() ([]UserRole, error) {
	var roles []UserRole
	err := r.db.Where("role_name <> ?", RoleAdmin).Order("id").Find(&roles).Error
	return roles, err
}

// SeedUserRoles inserts the platform roles if they are missing.
func SeedUserRoles(db *gorm.DB) error {
	roles := []UserRole{
		{RoleName: RoleAdmin, Description: "Platform administrator"},
		{RoleName: RoleMember, Description: "Community member"},
	}
	for _, role := range roles {
		r := role
		if err := db.Where(UserRole{RoleName: r.RoleName}).FirstOrCreate(&r).Error; err != nil {
			return err
		}
	}
	return nil
}
