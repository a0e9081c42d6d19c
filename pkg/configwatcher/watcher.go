package configwatcher

import (
	"context"
	"edu_quiz_backend/internal/config"
	"edu_quiz_backend/pkg/logger"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = time.Second

type Reloader func(cfg *config.Config)

// Watch 监听配置文件，变化后防抖并重新加载，ctx 结束时返回。
// 监听所在目录而不是文件本身，编辑器常用"写临时文件再 rename"的方式保存
func Watch(ctx context.Context, configFile string, debounce time.Duration, reload Reloader) error {
	absPath, err := filepath.Abs(configFile)
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watching config dir: %w", err)
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(debounce)
			}
		case <-pending:
			pending = nil
			newCfg, err := config.LoadConfig(filepath.Dir(absPath))
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded", zap.String("file", absPath))
			reload(newCfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
