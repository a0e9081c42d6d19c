package controller

import (
	"edu_quiz_backend/internal/service"
	"edu_quiz_backend/internal/util"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	AuthService *service.AuthService
}

func NewAuthController(authService *service.AuthService) *AuthController {
	return &AuthController{AuthService: authService}
}

// Register godoc
// @Summary 注册学生账号
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.RegisterRequest true "注册信息"
// @Success 201 {object} util.Response{data=object} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误或两次密码不一致"
// @Failure 409 {object} util.Response "邮箱或用户名已被使用"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/register [post]
func (c *AuthController) Register(ctx *gin.Context) {
	var req service.RegisterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user, err := c.AuthService.Register(req)
	switch {
	case errors.Is(err, util.ErrPasswordMismatch):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrEmailRegistered), errors.Is(err, util.ErrUsernameTaken):
		util.Conflict(ctx, err.Error())
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Created(ctx, gin.H{"id": user.ID, "username": user.Username})
	}
}

// Login godoc
// @Summary 登录
// @Description 校验用户名密码以及所选角色，返回 JWT
// @Tags 认证
// @Accept  json
// @Produce  json
// @Param   body body service.LoginRequest true "登录信息"
// @Success 200 {object} util.Response{data=object} "登录成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "用户名或密码错误"
// @Failure 403 {object} util.Response "角色不匹配"
// @Router /api/login [post]
func (c *AuthController) Login(ctx *gin.Context) {
	var req service.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	token, user, err := c.AuthService.Login(req)
	switch {
	case errors.Is(err, util.ErrInvalidCredentials):
		util.Error(ctx, http.StatusUnauthorized, "Invalid username or password.")
	case errors.Is(err, util.ErrRoleMismatch):
		util.Error(ctx, http.StatusForbidden, "You are not authorized to log in as "+string(req.Role)+".")
	case err != nil:
		util.LogInternalError(ctx, err)
	default:
		util.Success(ctx, gin.H{"token": token, "user": user})
	}
}

// Profile godoc
// @Summary 当前用户信息
// @Tags 认证
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.User}
// @Failure 401 {object} util.Response
// @Router /api/profile [get]
func (c *AuthController) Profile(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	user, err := c.AuthService.GetUser(claims.UserID)
	if errors.Is(err, util.ErrUserNotFound) {
		util.NotFound(ctx)
		return
	}
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, user)
}
