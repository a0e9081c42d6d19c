package database

import (
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	_, err := InitDB(&config.DatabaseConfig{Driver: "oracle"}, "debug")
	assert.Error(t, err)
}

func TestMigrateAndSeedAdmin(t *testing.T) {
	db, err := InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, "release")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	for _, m := range Models {
		assert.True(t, db.Migrator().HasTable(m))
	}

	adminCfg := &config.AdminConfig{Username: "root", Email: "root@example.com", Password: "s3cret-pass"}
	require.NoError(t, SeedAdmin(db, adminCfg))
	// 已有管理员时不重复创建
	require.NoError(t, SeedAdmin(db, adminCfg))

	var admins []model.User
	require.NoError(t, db.Where("role = ?", model.Admin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "root", admins[0].Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admins[0].Password), []byte("s3cret-pass")))
}

func TestSeedAdminSkippedWithoutPassword(t *testing.T) {
	db, err := InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, "release")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, SeedAdmin(db, &config.AdminConfig{Username: "root"}))

	var count int64
	db.Model(&model.User{}).Count(&count)
	assert.Zero(t, count)
}

func TestInitRedisDisabled(t *testing.T) {
	rdb, err := InitRedis(&config.RedisConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
