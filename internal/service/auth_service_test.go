package service

import (
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/repository"
	"edu_quiz_backend/internal/testutil"
	"edu_quiz_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-long-enough-1234"

func newAuthService(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret, ExpireTime: time.Hour}}
	return NewAuthService(repository.NewUserRepository(db), cfg), db
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Username:        "newbie",
		FullName:        "New Student",
		Email:           "Newbie@Example.com",
		Password:        "s3cretpass",
		ConfirmPassword: "s3cretpass",
	}
}

func TestRegisterCreatesStudent(t *testing.T) {
	svc, _ := newAuthService(t)

	user, err := svc.Register(validRegistration())
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, model.Student, user.Role)
	assert.Equal(t, "newbie@example.com", user.Email)
	assert.NotEqual(t, "s3cretpass", user.Password)
}

func TestRegisterRejects(t *testing.T) {
	svc, db := newAuthService(t)
	testutil.SeedStudent(t, db, "taken")

	mismatch := validRegistration()
	mismatch.ConfirmPassword = "different1"
	_, err := svc.Register(mismatch)
	assert.ErrorIs(t, err, util.ErrPasswordMismatch)

	dupEmail := validRegistration()
	dupEmail.Email = "taken@example.com"
	_, err = svc.Register(dupEmail)
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	dupName := validRegistration()
	dupName.Username = "taken"
	_, err = svc.Register(dupName)
	assert.ErrorIs(t, err, util.ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	svc, db := newAuthService(t)
	student := testutil.SeedStudent(t, db, "alice")
	testutil.SeedUser(t, db, "root", model.Admin)

	token, user, err := svc.Login(LoginRequest{Username: "alice", Password: testutil.DefaultPassword, Role: model.Student})
	require.NoError(t, err)
	assert.Equal(t, student.ID, user.ID)

	claims, err := util.ParseJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, student.ID, claims.UserID)
	assert.Equal(t, model.Student, claims.Role)

	_, _, err = svc.Login(LoginRequest{Username: "alice", Password: "wrong-password", Role: model.Student})
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, _, err = svc.Login(LoginRequest{Username: "ghost", Password: testutil.DefaultPassword, Role: model.Student})
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	_, _, err = svc.Login(LoginRequest{Username: "alice", Password: testutil.DefaultPassword, Role: model.Admin})
	assert.ErrorIs(t, err, util.ErrRoleMismatch)

	_, admin, err := svc.Login(LoginRequest{Username: "root", Password: testutil.DefaultPassword, Role: model.Admin})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
}

func TestGetUser(t *testing.T) {
	svc, db := newAuthService(t)
	student := testutil.SeedStudent(t, db, "alice")

	user, err := svc.GetUser(student.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.GetUser(404)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
