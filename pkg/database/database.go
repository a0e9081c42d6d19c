package database

import (
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/model"
	"errors"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models 参与自动迁移的全部模型
var Models = []interface{}{
	&model.User{},
	&model.StudentCourse{},
	&model.QuizAttempt{},
	&model.QuizQuestion{},
	&model.QuizAnswer{},
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "edu_quiz.db"
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	// 内存库每个连接都是独立的数据库
	if cfg.Driver == "sqlite" && (cfg.Path == "" || cfg.Path == ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Println("Database connection established")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return err
	}
	log.Println("Database migration completed")
	return nil
}

// SeedAdmin 没有管理员时按配置创建一个
func SeedAdmin(db *gorm.DB, cfg *config.AdminConfig) error {
	if cfg.Password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&model.User{}).Where("role = ?", model.Admin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var existing model.User
	err := db.Where("username = ?", cfg.Username).First(&existing).Error
	if err == nil {
		return fmt.Errorf("cannot seed admin: username %q is taken by a non-admin user", cfg.Username)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &model.User{
		Username: cfg.Username,
		FullName: "Administrator",
		Email:    cfg.Email,
		Password: string(hashed),
		Role:     model.Admin,
	}
	if err := db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("Seeded admin account %q", cfg.Username)
	return nil
}
