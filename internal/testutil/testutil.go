// Package testutil 提供基于内存 SQLite 的测试数据库和种子数据
package testutil

import (
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/pkg/database"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const DefaultPassword = "password123"

// DB 每次调用返回一个全新的、已迁移的内存库
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := database.InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, "release")
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	db.Logger = gormLogger.Default.LogMode(gormLogger.Silent)

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}

	tb.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func SeedUser(tb testing.TB, db *gorm.DB, username string, role model.UserRole) *model.User {
	tb.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		tb.Fatalf("hash password: %v", err)
	}

	u := &model.User{
		Username: username,
		FullName: username + " Tester",
		Email:    username + "@example.com",
		Password: string(hashed),
		Role:     role,
	}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedStudent(tb testing.TB, db *gorm.DB, username string) *model.User {
	tb.Helper()
	return SeedUser(tb, db, username, model.Student)
}

func SeedCourse(tb testing.TB, db *gorm.DB, studentID uint, name, status string, start time.Time) *model.StudentCourse {
	tb.Helper()

	c := &model.StudentCourse{
		StudentID:  studentID,
		CourseName: name,
		StartDate:  start,
		Status:     status,
	}
	if status == model.CourseCompleted {
		end := start.AddDate(0, 1, 0)
		c.EndDate = &end
		c.CompletionPercentage = 100
	}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

// SeedAttempt 写入一次测验，每题第一个选项为正确答案
func SeedAttempt(tb testing.TB, db *gorm.DB, studentID, courseID uint, difficulty model.Difficulty, score *float64) *model.QuizAttempt {
	tb.Helper()

	a := &model.QuizAttempt{
		StudentID:   studentID,
		CourseID:    courseID,
		Difficulty:  difficulty,
		Score:       score,
		IsCompleted: score != nil,
	}
	for i := 0; i < model.QuestionsPerQuiz; i++ {
		q := model.QuizQuestion{Text: "question", Position: i}
		for j := 0; j < model.AnswersPerQuestion; j++ {
			q.Answers = append(q.Answers, model.QuizAnswer{Text: "answer", IsCorrect: j == 0, Position: j})
		}
		a.Questions = append(a.Questions, q)
	}
	if err := db.Create(a).Error; err != nil {
		tb.Fatalf("seed attempt: %v", err)
	}
	return a
}

func Float(v float64) *float64 {
	return &v
}
