package controller

import (
	"edu_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// pathID 解析路径中的 :id，非法时直接返回 400
func pathID(ctx *gin.Context) (uint, bool) {
	id := util.MustParseUint(ctx.Param("id"))
	if id == 0 {
		util.BadRequest(ctx, "invalid id")
		return 0, false
	}
	return id, true
}

// currentUserID 由 AuthMiddleware 注入
func currentUserID(ctx *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return 0, false
	}
	return claims.UserID, true
}
