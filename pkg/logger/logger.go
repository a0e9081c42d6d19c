package logger

import (
	"edu_quiz_backend/internal/config"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 在 InitLogger 之前为空操作 logger，测试和脚本可直接使用
var Log = zap.NewNop()

const (
	defaultFile       = "logs/app.log"
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "time",
	LevelKey:       "level",
	NameKey:        "logger",
	CallerKey:      "caller",
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// InitLogger 文件写 JSON（lumberjack 滚动），控制台写可读格式
func InitLogger(cfg *config.Config) error {
	level, err := ParseLevel(cfg.Log.Level, cfg.Server.Mode)
	if err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   orDefault(cfg.Log.File, defaultFile),
		MaxSize:    positiveOr(cfg.Log.MaxSizeMB, defaultMaxSizeMB),
		MaxBackups: positiveOr(cfg.Log.MaxBackups, defaultMaxBackups),
		MaxAge:     positiveOr(cfg.Log.MaxAgeDays, defaultMaxAgeDays),
		Compress:   true,
	}

	Log = New(level, zapcore.AddSync(rotator), zapcore.AddSync(os.Stdout))
	return nil
}

// New console 为 nil 时只写 JSON
func New(level zapcore.Level, jsonOut, console zapcore.WriteSyncer) *zap.Logger {
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), jsonOut, level),
	}
	if console != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), console, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).
		With(zap.String("service", "edu-quiz"))
}

// ParseLevel 未显式配置时，debug 模式输出 debug 日志，其余为 info
func ParseLevel(level, mode string) (zapcore.Level, error) {
	if level == "" {
		if mode == gin.DebugMode {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}

	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// GinLogger 请求日志，5xx 记为 error，4xx 记为 warn
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, zap.String("errors", errs))
		}

		switch {
		case status >= 500:
			Log.Error("HTTP request", fields...)
		case status >= 400:
			Log.Warn("HTTP request", fields...)
		default:
			Log.Info("HTTP request", fields...)
		}
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
