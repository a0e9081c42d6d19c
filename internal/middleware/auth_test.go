package middleware

import (
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret-0123456789abcdef"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("/", AuthMiddleware(secret))
	authed.GET("/me", func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).Username)
	})
	authed.GET("/admin", RoleMiddleware(model.Admin), func(c *gin.Context) {
		util.Success(c, "ok")
	})
	return r
}

func token(t *testing.T, role model.UserRole, ttl time.Duration) string {
	t.Helper()
	u := &model.User{Username: "alice", Role: role}
	u.ID = 1
	tok, err := util.GenerateJWT(u, secret, ttl)
	require.NoError(t, err)
	return tok
}

func do(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer "+token(t, model.Student, -time.Minute)).Code)

	w := do(r, "/me", "Bearer "+token(t, model.Student, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":"alice"`)
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "Bearer "+token(t, model.Student, time.Hour)).Code)
	assert.Equal(t, http.StatusOK, do(r, "/admin", "Bearer "+token(t, model.Admin, time.Hour)).Code)
}
