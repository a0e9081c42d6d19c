package service

import (
	"bytes"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/repository"
	"edu_quiz_backend/internal/util"
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

const (
	SheetCourses     = "Courses"
	SheetQuizResults = "Quiz Results"
)

// ExportService 导出管理员报表
type ExportService struct {
	CourseRepo *repository.CourseRepository
	QuizRepo   *repository.QuizRepository
}

func NewExportService(courseRepo *repository.CourseRepository, quizRepo *repository.QuizRepository) *ExportService {
	return &ExportService{CourseRepo: courseRepo, QuizRepo: quizRepo}
}

var (
	courseHeader = []interface{}{"ID", "Student", "Full Name", "Course", "Start Date", "End Date", "Hours Spent", "Completion %", "Status"}
	resultHeader = []interface{}{"Attempt ID", "Student", "Course", "Difficulty", "Score", "Completed At"}
)

// ExportWorkbook 生成包含课程和测验成绩两张表的 xlsx
func (s *ExportService) ExportWorkbook() (*bytes.Buffer, error) {
	courses, err := s.CourseRepo.ListAll()
	if err != nil {
		return nil, err
	}
	results, err := s.QuizRepo.ListResults()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCourses); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetQuizResults); err != nil {
		return nil, err
	}

	if err := writeRows(f, SheetCourses, courseHeader, len(courses), func(i int) []interface{} {
		return courseRow(&courses[i])
	}); err != nil {
		return nil, err
	}
	if err := writeRows(f, SheetQuizResults, resultHeader, len(results), func(i int) []interface{} {
		return resultRow(&results[i])
	}); err != nil {
		return nil, err
	}

	return f.WriteToBuffer()
}

func writeRows(f *excelize.File, sheet string, header []interface{}, n int, row func(int) []interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		values := row(i)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func courseRow(c *model.StudentCourse) []interface{} {
	username, fullName := "", ""
	if c.Student != nil {
		username, fullName = c.Student.Username, c.Student.FullName
	}
	end := ""
	if c.EndDate != nil {
		end = c.EndDate.Format(util.DateFormat)
	}
	return []interface{}{
		c.ID, username, fullName, c.CourseName,
		c.StartDate.Format(util.DateFormat), end,
		c.HoursSpent, c.CompletionPercentage, c.Status,
	}
}

func resultRow(a *model.QuizAttempt) []interface{} {
	username, courseName := "", ""
	if a.Course != nil {
		courseName = a.Course.CourseName
		if a.Course.Student != nil {
			username = a.Course.Student.Username
		}
	}
	score := ""
	if a.Score != nil {
		score = fmt.Sprintf("%d%%", int(math.Round(*a.Score)))
	}
	completed := ""
	if a.CompletedAt != nil {
		completed = a.CompletedAt.Format(util.TimeFormat)
	}
	return []interface{}{a.ID, username, courseName, string(a.Difficulty), score, completed}
}
