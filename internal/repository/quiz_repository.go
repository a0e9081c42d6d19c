package repository

import (
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/util"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// liveCourse 排除所属课程已被删除的测验
func liveCourse(db *gorm.DB) *gorm.DB {
	courses := db.Session(&gorm.Session{NewDB: true}).Model(&model.StudentCourse{}).Select("id")
	return db.Where("course_id IN (?)", courses)
}

// LatestAttempt 返回该课程最近创建的一次测验，没有时返回 nil, nil
func (r *QuizRepository) LatestAttempt(courseID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.Where("course_id = ?", courseID).
		Order("created_at DESC").Order("id DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// CreateAttempt 在同一事务中写入测验、题目和选项，任一失败全部回滚
func (r *QuizRepository) CreateAttempt(attempt *model.QuizAttempt) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		questions := attempt.Questions

		if err := tx.Omit(clause.Associations).Create(attempt).Error; err != nil {
			return err
		}

		for i := range questions {
			q := &questions[i]
			q.QuizAttemptID = attempt.ID
			if err := tx.Omit(clause.Associations).Create(q).Error; err != nil {
				return err
			}

			for j := range q.Answers {
				q.Answers[j].QuestionID = q.ID
			}
			if len(q.Answers) > 0 {
				if err := tx.Create(&q.Answers).Error; err != nil {
					return err
				}
			}
		}

		attempt.Questions = questions
		return nil
	})
}

// RecordSubmission 写入分数并标记完成；已完成的测验不会被覆盖
func (r *QuizRepository) RecordSubmission(attemptID uint, score float64, answers datatypes.JSON) error {
	now := time.Now()
	result := r.DB.Model(&model.QuizAttempt{}).
		Where("id = ? AND is_completed = ?", attemptID, false).
		Updates(map[string]interface{}{
			"score":             score,
			"is_completed":      true,
			"completed_at":      now,
			"submitted_answers": answers,
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.DB.Model(&model.QuizAttempt{}).Where("id = ?", attemptID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return util.ErrAttemptAlreadyCompleted
	}
	return nil
}

func (r *QuizRepository) FindAttemptWithQuestions(attemptID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.
		Preload("Questions", orderByPosition).
		Preload("Questions.Answers", orderByPosition).
		Preload("Course").
		Scopes(liveCourse).
		First(&attempt, attemptID).Error
	return &attempt, err
}

// FindAttemptForStudent 同 FindAttemptWithQuestions，但只返回属于该学生的测验
func (r *QuizRepository) FindAttemptForStudent(attemptID, studentID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.
		Preload("Questions", orderByPosition).
		Preload("Questions.Answers", orderByPosition).
		Preload("Course").
		Scopes(liveCourse).
		Where("student_id = ?", studentID).
		First(&attempt, attemptID).Error
	return &attempt, err
}

func (r *QuizRepository) ListAttemptsByCourse(courseID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("course_id = ?", courseID).
		Order("created_at DESC").Order("id DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *QuizRepository) ListPendingByStudent(studentID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Preload("Course").
		Scopes(liveCourse).
		Where("student_id = ? AND is_completed = ?", studentID, false).
		Order("created_at DESC").Order("id DESC").
		Find(&attempts).Error
	return attempts, err
}

// ListResults 所有已评分的测验，附带课程和学生信息，用于导出
func (r *QuizRepository) ListResults() ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Preload("Course").Preload("Course.Student").
		Scopes(liveCourse).
		Where("is_completed = ?", true).
		Order("completed_at DESC").Order("id DESC").
		Find(&attempts).Error
	return attempts, err
}
