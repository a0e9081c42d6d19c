package controller

import (
	"edu_quiz_backend/internal/service"
	"edu_quiz_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// Dashboard godoc
// @Summary 学生首页
// @Description 进行中的课程按开始日期升序，已完成的按结束日期降序
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.Dashboard}
// @Failure 401 {object} util.Response
// @Router /api/dashboard [get]
func (c *CourseController) Dashboard(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	dash, err := c.CourseService.Dashboard(userID)
	if errors.Is(err, util.ErrUserNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, dash)
}

// GetCourse godoc
// @Summary 课程详情
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.StudentCourse}
// @Failure 404 {object} util.Response
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx)
	if !ok {
		return
	}

	course, err := c.CourseService.GetStudentCourse(userID, courseID)
	if errors.Is(err, util.ErrCourseNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, course)
}
