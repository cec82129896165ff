package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sharath018/community-events-backend/config"
	"github.com/sharath018/community-events-backend/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
)

type Service interface {
	Register(input RegisterInput) (*User, error)
	Login(input LoginInput) (*TokenPair, *User, error)
	Refresh(refreshToken string) (string, error)
	Logout(refreshToken string) error
	GetUserByID(userID uint) (User, error)
	GetPublicRoles() ([]PublicRoleResponse, error)
}

type service struct {
	repo          Repository
	accessSecret  string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewService(r Repository, cfg *config.Config) Service {
	return &service{
		repo:          r,
		accessSecret:  cfg.JWTAccessSecret,
		refreshSecret: cfg.JWTRefreshSecret,
		accessTTL:     time.Duration(cfg.JWTAccessTTLHours) * time.Hour,
		refreshTTL:    time.Duration(cfg.JWTRefreshTTLHours) * time.Hour,
		now:           time.Now,
	}
}

// =============================
// Register
// =============================

type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Role     string
}

func (s *service) Register(in RegisterInput) (*User, error) {
	roleName := strings.ToLower(strings.TrimSpace(in.Role))
	if roleName == "" {
		roleName = RoleMember
	}
	if roleName == RoleAdmin {
		return nil, errors.New("admin registration is not allowed")
	}
	role, err := s.repo.FindRoleByName(roleName)
	if err != nil {
		return nil, errors.New("invalid role")
	}

	if existing, err := s.repo.FindByEmail(in.Email); err == nil && existing.ID != 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		RoleID:       role.ID,
		Role:         *role,
		Status:       "active",
	}
	if err := s.repo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// =============================
// Login
// =============================

type LoginInput struct {
	Email    string
	Password string
}

func (s *service) Login(in LoginInput) (*TokenPair, *User, error) {
	user, err := s.repo.FindByEmail(in.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.New("couldn't find your account")
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if user.Status == "inactive" {
		return nil, nil, errors.New("your account is inactive")
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, nil, err
	}
	refreshToken, err := s.generateRefreshToken(user)
	if err != nil {
		return nil, nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, user, nil
}

func (s *service) generateAccessToken(user *User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role_id": user.RoleID,
		"role":    user.Role.RoleName,
		"exp":     s.now().Add(s.accessTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.accessSecret))
}

func (s *service) generateRefreshToken(user *User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role_id": user.RoleID,
		"jti":     uuid.NewString(),
		"exp":     s.now().Add(s.refreshTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.refreshSecret))
}

func (s *service) parseRefresh(refreshToken string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidRefresh
		}
		return []byte(s.refreshSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidRefresh
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["user_id"] == nil {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// =============================
// Refresh / Logout
// =============================

func (s *service) Refresh(refreshToken string) (string, error) {
	claims, err := s.parseRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	if utils.RedisEnabled() {
		if _, err := utils.GetToken(revokedKey(refreshToken)); err == nil {
			return "", ErrInvalidRefresh
		}
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	user, err := s.repo.FindByID(uint(userID))
	if err != nil {
		return "", errors.New("user not found")
	}
	return s.generateAccessToken(&user)
}

// Logout revokes the refresh token until it would have expired anyway.
// Access tokens are stateless; clients drop them.
func (s *service) Logout(refreshToken string) error {
	if refreshToken == "" || !utils.RedisEnabled() {
		return nil
	}
	claims, err := s.parseRefresh(refreshToken)
	if err != nil {
		return err
	}
	ttl := s.refreshTTL
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ttl = exp.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	if err := utils.SetToken(revokedKey(refreshToken), "1", ttl); err != nil {
		utils.Log.Warn("refresh token revocation failed", zap.Error(err))
		return err
	}
	return nil
}

func revokedKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "revoked_refresh:" + hex.EncodeToString(sum[:])
}

func (s *service) GetUserByID(userID uint) (User, error) {
	return s.repo.FindByID(userID)
}

func (s *service) GetPublicRoles() ([]PublicRoleResponse, error) {
	roles, err := s.repo.GetPublicRoles()
	if err != nil {
		return nil, err
	}

	publicRoles := make([]PublicRoleResponse, 0, len(roles))
	for _, role := range roles {
		publicRoles = append(publicRoles, PublicRoleResponse{
			ID:          role.ID,
			RoleName:    role.RoleName,
			Description: role.Description,
		})
	}
	return publicRoles, nil
}
