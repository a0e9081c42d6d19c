package repository

import (
	"edu_quiz_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.StudentCourse) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.StudentCourse, error) {
	var course model.StudentCourse
	err := r.DB.Preload("Student").First(&course, id).Error
	return &course, err
}

// FindByIDForStudent 只返回属于该学生的课程，否则 gorm.ErrRecordNotFound
func (r *CourseRepository) FindByIDForStudent(id, studentID uint) (*model.StudentCourse, error) {
	var course model.StudentCourse
	err := r.DB.Where("id = ? AND student_id = ?", id, studentID).First(&course).Error
	return &course, err
}

func (r *CourseRepository) ListOngoingByStudent(studentID uint) ([]model.StudentCourse, error) {
	var courses []model.StudentCourse
	err := r.DB.Where("student_id = ? AND status <> ?", studentID, model.CourseCompleted).
		Order("start_date ASC").
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) ListCompletedByStudent(studentID uint) ([]model.StudentCourse, error) {
	var courses []model.StudentCourse
	err := r.DB.Where("student_id = ? AND status = ?", studentID, model.CourseCompleted).
		Order("end_date DESC").
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) ListAll() ([]model.StudentCourse, error) {
	var courses []model.StudentCourse
	err := r.DB.Preload("Student").
		Order("created_at DESC").Order("id DESC").
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) Update(course *model.StudentCourse) error {
	return r.DB.Omit("Student").Save(course).Error
}

// Delete 在同一事务中软删除课程及其测验、题目和选项
func (r *CourseRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&model.StudentCourse{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var attemptIDs []uint
		if err := tx.Model(&model.QuizAttempt{}).Where("course_id = ?", id).Pluck("id", &attemptIDs).Error; err != nil {
			return err
		}
		if len(attemptIDs) == 0 {
			return nil
		}

		var questionIDs []uint
		if err := tx.Model(&model.QuizQuestion{}).Where("quiz_attempt_id IN ?", attemptIDs).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.QuizAnswer{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", questionIDs).Delete(&model.QuizQuestion{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", attemptIDs).Delete(&model.QuizAttempt{}).Error
	})
}
