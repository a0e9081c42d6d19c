package service

import (
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

func newCourseService(t *testing.T) (*CourseService, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	return NewCourseService(repository.NewCourseRepository(db), repository.NewUserRepository(db)), db
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int { return &i }

func TestDashboard(t *testing.T) {
	svc, db := newCourseService(t)
	student := testutil.SeedStudent(t, db, "alice")
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	testutil.SeedCourse(t, db, student.ID, "Later", model.CourseOngoing, base.AddDate(0, 2, 0))
	testutil.SeedCourse(t, db, student.ID, "Sooner", model.CourseOngoing, base)
	testutil.SeedCourse(t, db, student.ID, "Old", model.CourseCompleted, base.AddDate(-1, 0, 0))
	testutil.SeedCourse(t, db, student.ID, "Recent", model.CourseCompleted, base.AddDate(0, -2, 0))

	dash, err := svc.Dashboard(student.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice Tester", dash.FullName)
	require.Len(t, dash.Ongoing, 2)
	assert.Equal(t, "Sooner", dash.Ongoing[0].CourseName)
	require.Len(t, dash.Completed, 2)
	assert.Equal(t, "Recent", dash.Completed[0].CourseName)

	_, err = svc.Dashboard(999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestCreateCourse(t *testing.T) {
	svc, db := newCourseService(t)
	student := testutil.SeedStudent(t, db, "alice")
	testutil.SeedUser(t, db, "root", model.Admin)

	course, err := svc.CreateCourse(CourseRequest{
		StudentName:          "alice",
		CourseName:           "Distributed Systems",
		StartDate:            "2025-02-01",
		EndDate:              "2025-05-30",
		HoursSpent:           12,
		CompletionPercentage: 40,
		Status:               model.CourseOngoing,
	})
	require.NoError(t, err)
	assert.Equal(t, student.ID, course.StudentID)
	assert.Equal(t, "2025-02-01", course.StartDate.Format(util.DateFormat))
	require.NotNil(t, course.EndDate)

	_, err = svc.CreateCourse(CourseRequest{StudentName: "ghost", CourseName: "X", StartDate: "2025-01-01", Status: model.CourseOngoing})
	assert.ErrorIs(t, err, util.ErrUserNotFound)
	assert.EqualError(t, err, `Student "ghost" not found.`)

	_, err = svc.CreateCourse(CourseRequest{StudentName: "root", CourseName: "X", StartDate: "2025-01-01", Status: model.CourseOngoing})
	assert.ErrorIs(t, err, util.ErrUserNotFound)

	_, err = svc.CreateCourse(CourseRequest{StudentName: "alice", CourseName: "X", StartDate: "01/02/2025", Status: model.CourseOngoing})
	assert.ErrorIs(t, err, util.ErrInvalidDate)

	_, err = svc.CreateCourse(CourseRequest{StudentName: "alice", CourseName: "X", StartDate: "2025-03-01", EndDate: "2025-02-01", Status: model.CourseOngoing})
	assert.ErrorIs(t, err, util.ErrInvalidDateRange)
}

func TestUpdateAndDeleteCourse(t *testing.T) {
	svc, db := newCourseService(t)
	student := testutil.SeedStudent(t, db, "alice")
	course := testutil.SeedCourse(t, db, student.ID, "Go", model.CourseOngoing, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	updated, err := svc.UpdateCourse(course.ID, UpdateCourseRequest{
		EndDate:              strPtr("2025-03-01"),
		CompletionPercentage: intPtr(100),
		Status:               strPtr(model.CourseCompleted),
	})
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted())
	assert.Equal(t, 100, updated.CompletionPercentage)

	stored, err := svc.GetStudentCourse(student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CourseCompleted, stored.Status)
	require.NotNil(t, stored.EndDate)
	assert.Equal(t, "2025-03-01", stored.EndDate.Format(util.DateFormat))

	_, err = svc.UpdateCourse(course.ID, UpdateCourseRequest{EndDate: strPtr("2024-12-01")})
	assert.ErrorIs(t, err, util.ErrInvalidDateRange)

	_, err = svc.UpdateCourse(999, UpdateCourseRequest{})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	require.NoError(t, svc.DeleteCourse(course.ID))
	assert.ErrorIs(t, svc.DeleteCourse(course.ID), util.ErrCourseNotFound)

	_, err = svc.GetStudentCourse(student.ID, course.ID)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)
}
