package controller

import (
	"edu_quiz_backend/internal/service"
	"edu_quiz_backend/internal/util"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	CourseService *service.CourseService
	ExportService *service.ExportService
}

func NewAdminController(courseService *service.CourseService, exportService *service.ExportService) *AdminController {
	return &AdminController{CourseService: courseService, ExportService: exportService}
}

func (c *AdminController) courseError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrUserNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrCourseNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrInvalidDate), errors.Is(err, util.ErrInvalidDateRange):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// CreateCourse godoc
// @Summary 为学生录入课程
// @Tags 管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.StudentCourse} "Course saved successfully!"
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response "学生不存在"
// @Router /api/admin/courses [post]
func (c *AdminController) CreateCourse(ctx *gin.Context) {
	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.CreateCourse(req)
	if err != nil {
		c.courseError(ctx, err)
		return
	}
	util.CreatedWithMessage(ctx, "Course saved successfully!", course)
}

// ListCourses godoc
// @Summary 所有学生课程
// @Tags 管理
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.StudentCourse}
// @Router /api/admin/courses [get]
func (c *AdminController) ListCourses(ctx *gin.Context) {
	courses, err := c.CourseService.ListCourses()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// UpdateCourse godoc
// @Summary 更新课程进度
// @Tags 管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param body body service.UpdateCourseRequest true "需要修改的字段"
// @Success 200 {object} util.Response{data=model.StudentCourse}
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{id} [put]
func (c *AdminController) UpdateCourse(ctx *gin.Context) {
	courseID, ok := pathID(ctx)
	if !ok {
		return
	}

	var req service.UpdateCourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.CourseService.UpdateCourse(courseID, req)
	if err != nil {
		c.courseError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// DeleteCourse godoc
// @Summary 删除课程
// @Tags 管理
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{id} [delete]
func (c *AdminController) DeleteCourse(ctx *gin.Context) {
	courseID, ok := pathID(ctx)
	if !ok {
		return
	}

	if err := c.CourseService.DeleteCourse(courseID); err != nil {
		c.courseError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Export godoc
// @Summary 导出课程和测验成绩
// @Tags 管理
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Success 200 {file} file
// @Router /api/admin/export [get]
func (c *AdminController) Export(ctx *gin.Context) {
	buf, err := c.ExportService.ExportWorkbook()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	filename := fmt.Sprintf("edu_quiz_export_%s.xlsx", time.Now().Format("20060102"))
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	ctx.Data(http.StatusOK, util.MimeXLSX, buf.Bytes())
}
