package app

import (
	"edu_quiz_backend/docs"
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/middleware"
	"edu_quiz_backend/internal/model"
	"edu_quiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由
	a.registerPublicRoutes(router, c)

	// 2. 需要登录
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		authGroup.GET("/profile", c.auth.Profile)

		a.registerStudentRoutes(authGroup, c)
	}

	// 3. 管理员
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	student := group.Group("")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.GET("/dashboard", c.course.Dashboard)
		student.GET("/courses/:id", c.course.GetCourse)

		student.POST("/courses/:id/quizzes", c.quiz.StartQuiz)
		student.GET("/courses/:id/quizzes", c.quiz.ListCourseAttempts)

		student.GET("/quizzes/pending", c.quiz.ListPending)
		student.GET("/quizzes/:id", c.quiz.GetAttempt)
		student.POST("/quizzes/:id/submit", c.quiz.SubmitQuiz)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	admin := router.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/courses", c.admin.CreateCourse)
		admin.GET("/courses", c.admin.ListCourses)
		admin.PUT("/courses/:id", c.admin.UpdateCourse)
		admin.DELETE("/courses/:id", c.admin.DeleteCourse)
		admin.GET("/export", c.admin.Export)
	}
}
