package app

import (
	"context"
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/internal/controller"
	"edu_quiz_backend/internal/events"
	"edu_quiz_backend/internal/repository"
	"edu_quiz_backend/internal/service"
	"edu_quiz_backend/internal/util"
	"edu_quiz_backend/pkg/database"
	"edu_quiz_backend/pkg/logger"
	"edu_quiz_backend/pkg/monitoring"
	"edu_quiz_backend/pkg/security"
	"edu_quiz_backend/pkg/tracing"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services  *services
	publisher *events.WatermillPublisher
	tracer    *sdktrace.TracerProvider

	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user   *repository.UserRepository
	course *repository.CourseRepository
	quiz   *repository.QuizRepository
}

type services struct {
	auth     *service.AuthService
	course   *service.CourseService
	quiz     *service.QuizService
	export   *service.ExportService
	provider *service.GeminiQuizProvider
	storage  *service.StorageService
}

type controllers struct {
	auth   *controller.AuthController
	course *controller.CourseController
	quiz   *controller.QuizController
	admin  *controller.AdminController
	health *controller.HealthController
}

// Options 测试时替换外部依赖
type Options struct {
	DB       *gorm.DB
	Provider service.QuizContentProvider
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 配置文件变更后调用，只有注册过回调的部分会生效
func (a *App) ReloadConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:   repository.NewUserRepository(db),
		course: repository.NewCourseRepository(db),
		quiz:   repository.NewQuizRepository(db),
	}
}

// startGuardTTL 覆盖一次带重试的完整生成
func startGuardTTL(ai config.AIConfig) time.Duration {
	retries := ai.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return ai.Timeout()*time.Duration(retries+1) + 10*time.Second
}

func (a *App) initServices(repos *repositories, cfg *config.Config, opts Options) (*services, error) {
	s := &services{}

	s.auth = service.NewAuthService(repos.user, cfg)
	s.course = service.NewCourseService(repos.course, repos.user)
	s.export = service.NewExportService(repos.course, repos.quiz)

	provider := opts.Provider
	if provider == nil {
		s.provider = service.NewGeminiQuizProvider(cfg.AI)
		provider = s.provider
		a.RegisterConfigCallback(func(newCfg *config.Config) {
			s.provider.UpdateConfig(newCfg.AI)
			logger.Log.Info("AI provider settings reloaded", zap.String("model", newCfg.AI.Model))
		})
	}

	s.quiz = service.NewQuizService(repos.quiz, repos.course, provider)

	if a.Redis != nil {
		s.quiz.Guard = service.NewRedisStartGuard(a.Redis, startGuardTTL(cfg.AI))
	}

	publisher, err := events.NewPublisher(&cfg.Events)
	if err != nil {
		return nil, err
	}
	a.publisher = publisher
	s.quiz.Events = publisher

	if cfg.Storage.ArchiveQuizzes {
		storage, err := service.NewStorageService(&cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("initializing storage: %w", err)
		}
		s.storage = storage
		s.quiz.Archiver = service.NewStorageQuizArchiver(storage)
	}

	return s, nil
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		auth:   controller.NewAuthController(s.auth),
		course: controller.NewCourseController(s.course),
		quiz:   controller.NewQuizController(s.quiz),
		admin:  controller.NewAdminController(s.course, s.export),
		health: controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(a.ctx, cfg.RateLimit.MaxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 进程内事件通道时，消费事件写入日志
func (a *App) startBackgroundTasks() {
	if a.publisher == nil {
		return
	}

	messages, err := a.publisher.Subscribe(a.ctx)
	if errors.Is(err, events.ErrSubscribeUnsupported) {
		return
	}
	if err != nil {
		logger.Log.Warn("Failed to subscribe to quiz events", zap.Error(err))
		return
	}
	go events.Consume(a.ctx, messages, events.LogEvent)
}

// New 初始化数据库、缓存和所有组件。opts 为空时使用真实依赖
func New(cfg *config.Config, opts Options) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Config: cfg, ctx: ctx, cancel: cancel}

	db := opts.DB
	if db == nil {
		var err error
		db, err = database.InitDB(&cfg.Database, cfg.Server.Mode)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("initializing database: %w", err)
		}
	}
	app.DB = db

	if cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			cancel()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		if err := database.SeedAdmin(db, &cfg.Admin); err != nil {
			cancel()
			return nil, fmt.Errorf("seeding admin: %w", err)
		}
		logger.Log.Info("Database migrated")
	}
	if cfg.MigrateOnly {
		return app, nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("initializing redis: %w", err)
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	svcs, err := app.initServices(repos, cfg, opts)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.services = svcs
	ctrls := app.initControllers(svcs)

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		app.tracer = tp
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if gin.Mode() != gin.TestMode {
		router.Use(logger.GinLogger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	if svcs.storage != nil && cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks()
	return app, nil
}

// Close 释放后台任务、事件通道、追踪和连接
func (a *App) Close() {
	a.cancel()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Log.Warn("Failed to close event publisher", zap.Error(err))
		}
	}

	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func (a *App) Run() error {
	// 生成测验可能耗时接近 AI 超时，写超时需要留出余量
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      startGuardTTL(a.Config.AI) + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		a.Close()
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	a.Close()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}
