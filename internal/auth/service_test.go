package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sharath018/community-events-backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	users  map[uint]*User
	roles  map[string]*UserRole
	nextID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users: map[uint]*User{},
		roles: map[string]*UserRole{
			RoleAdmin:  {ID: 1, RoleName: RoleAdmin},
			RoleMember: {ID: 2, RoleName: RoleMember},
		},
	}
}

func (f *fakeRepo) Create(u *User) error {
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = u
	return nil
}

func (f *fakeRepo) FindByEmail(email string) (*User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return &User{}, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindByID(id uint) (User, error) {
	if u, ok := f.users[id]; ok {
		return *u, nil
	}
	return User{}, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindRoleByName(name string) (*UserRole, error) {
	if r, ok := f.roles[name]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) Update(u *User) error { f.users[u.ID] = u; return nil }

func (f *fakeRepo) GetPublicRoles() ([]UserRole, error) {
	return []UserRole{*f.roles[RoleMember]}, nil
}

func newTestService(repo Repository) Service {
	return NewService(repo, &config.Config{
		JWTAccessSecret:    "access",
		JWTRefreshSecret:   "refresh",
		JWTAccessTTLHours:  1,
		JWTRefreshTTLHours: 24,
	})
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	user, err := svc.Register(RegisterInput{FullName: " Asha ", Email: "Asha@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, "Asha", user.FullName)
	assert.Equal(t, RoleMember, user.Role.RoleName)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	_, err = svc.Register(RegisterInput{FullName: "Asha", Email: "asha@example.com", Password: "other123"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	tokens, logged, err := svc.Login(LoginInput{Email: "asha@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	parsed, err := jwt.Parse(tokens.AccessToken, func(*jwt.Token) (interface{}, error) { return []byte("access"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(user.ID), claims["user_id"])
	assert.Equal(t, RoleMember, claims["role"])

	_, _, err = svc.Login(LoginInput{Email: "asha@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsAdmin(t *testing.T) {
	svc := newTestService(newFakeRepo())
	_, err := svc.Register(RegisterInput{FullName: "Root", Email: "root@example.com", Password: "secret123", Role: "Admin"})
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	_, err := svc.Register(RegisterInput{FullName: "Ravi", Email: "ravi@example.com", Password: "secret123"})
	require.NoError(t, err)
	tokens, _, err := svc.Login(LoginInput{Email: "ravi@example.com", Password: "secret123"})
	require.NoError(t, err)

	access, err := svc.Refresh(tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)

	_, err = svc.Refresh(tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = svc.Refresh("garbage")
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestLogoutWithoutRedisIsNoop(t *testing.T) {
	svc := newTestService(newFakeRepo())
	assert.NoError(t, svc.Logout(""))
	assert.NoError(t, svc.Logout("anything"))
}
