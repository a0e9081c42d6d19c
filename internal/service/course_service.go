package service

import (
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/repository"
	"edu_quiz_backend/internal/util"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo *repository.CourseRepository
	UserRepo   *repository.UserRepository
}

func NewCourseService(courseRepo *repository.CourseRepository, userRepo *repository.UserRepository) *CourseService {
	return &CourseService{CourseRepo: courseRepo, UserRepo: userRepo}
}

// Dashboard 学生首页数据
type Dashboard struct {
	FullName  string                `json:"fullname"`
	Ongoing   []model.StudentCourse `json:"ongoing"`
	Completed []model.StudentCourse `json:"completed"`
}

type CourseRequest struct {
	StudentName          string `json:"student_name" binding:"required"`
	CourseName           string `json:"course_name" binding:"required,max=200"`
	StartDate            string `json:"start_date" binding:"required"`
	EndDate              string `json:"end_date"`
	HoursSpent           int    `json:"hours_spent" binding:"min=0"`
	CompletionPercentage int    `json:"completion_percentage" binding:"min=0,max=100"`
	Status               string `json:"status" binding:"required,oneof=Ongoing Completed"`
}

type UpdateCourseRequest struct {
	CourseName           *string `json:"course_name" binding:"omitempty,max=200"`
	StartDate            *string `json:"start_date"`
	EndDate              *string `json:"end_date"`
	HoursSpent           *int    `json:"hours_spent" binding:"omitempty,min=0"`
	CompletionPercentage *int    `json:"completion_percentage" binding:"omitempty,min=0,max=100"`
	Status               *string `json:"status" binding:"omitempty,oneof=Ongoing Completed"`
}

func (s *CourseService) Dashboard(studentID uint) (*Dashboard, error) {
	user, err := s.UserRepo.FindByID(studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	ongoing, err := s.CourseRepo.ListOngoingByStudent(studentID)
	if err != nil {
		return nil, err
	}
	completed, err := s.CourseRepo.ListCompletedByStudent(studentID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{FullName: user.FullName, Ongoing: ongoing, Completed: completed}, nil
}

func (s *CourseService) GetStudentCourse(studentID, courseID uint) (*model.StudentCourse, error) {
	course, err := s.CourseRepo.FindByIDForStudent(courseID, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	return course, err
}

func parseDates(start, end string) (time.Time, *time.Time, error) {
	startDate, err := util.ParseDate(start)
	if err != nil || startDate == nil {
		return time.Time{}, nil, util.ErrInvalidDate
	}
	endDate, err := util.ParseDate(end)
	if err != nil {
		return time.Time{}, nil, util.ErrInvalidDate
	}
	if endDate != nil && endDate.Before(*startDate) {
		return time.Time{}, nil, util.ErrInvalidDateRange
	}
	return *startDate, endDate, nil
}

// CreateCourse 管理员为学生录入课程，学生按用户名查找
func (s *CourseService) CreateCourse(req CourseRequest) (*model.StudentCourse, error) {
	name := strings.TrimSpace(req.StudentName)
	student, err := s.UserRepo.FindByUsername(name)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && student.Role != model.Student) {
		return nil, &util.StudentNotFoundError{Name: name}
	}
	if err != nil {
		return nil, err
	}

	start, end, err := parseDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	course := &model.StudentCourse{
		StudentID:            student.ID,
		CourseName:           strings.TrimSpace(req.CourseName),
		StartDate:            start,
		EndDate:              end,
		HoursSpent:           req.HoursSpent,
		CompletionPercentage: req.CompletionPercentage,
		Status:               req.Status,
	}
	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	course.Student = student
	return course, nil
}

func (s *CourseService) ListCourses() ([]model.StudentCourse, error) {
	return s.CourseRepo.ListAll()
}

func (s *CourseService) UpdateCourse(courseID uint, req UpdateCourseRequest) (*model.StudentCourse, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}

	if req.CourseName != nil {
		course.CourseName = strings.TrimSpace(*req.CourseName)
	}

	start := course.StartDate.Format(util.DateFormat)
	end := ""
	if course.EndDate != nil {
		end = course.EndDate.Format(util.DateFormat)
	}
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if req.StartDate != nil || req.EndDate != nil {
		course.StartDate, course.EndDate, err = parseDates(start, end)
		if err != nil {
			return nil, err
		}
	}

	if req.HoursSpent != nil {
		course.HoursSpent = *req.HoursSpent
	}
	if req.CompletionPercentage != nil {
		course.CompletionPercentage = *req.CompletionPercentage
	}
	if req.Status != nil {
		course.Status = *req.Status
	}

	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) DeleteCourse(courseID uint) error {
	err := s.CourseRepo.Delete(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrCourseNotFound
	}
	return err
}
