// @title Edu Quiz 后端 API
// @version 1.0
// @description 学生课程管理与自适应AI测验接口。
// @termsOfService http://swagger.io/terms/

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"edu_quiz_backend/internal/app"
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/pkg/configwatcher"
	"edu_quiz_backend/pkg/logger"
	"flag"
	"log"
	"path/filepath"

	"go.uber.org/zap"
)

const configDir = "configs"

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.Parse()

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	if err := logger.InitLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	application, err := app.New(cfg, app.Options{})
	if err != nil {
		logger.Log.Fatal("Failed to initialize application", zap.Error(err))
	}

	// 迁移完成后直接退出
	if *migrateOnly {
		application.Close()
		log.Println("数据库迁移完成，退出程序")
		return
	}

	// 配置热更新，目前只影响 AI 生成参数
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := configwatcher.Watch(ctx, filepath.Join(configDir, "config.yaml"), configwatcher.DefaultDebounce, application.ReloadConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()

	if err := application.Run(); err != nil {
		logger.Log.Fatal("Server stopped", zap.Error(err))
	}
}
