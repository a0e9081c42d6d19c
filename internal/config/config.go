package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	JWT       JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Events    EventsConfig    `mapstructure:"events" yaml:"events"`
	CORS      CORSConfig      `mapstructure:"cors" yaml:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Admin     AdminConfig     `mapstructure:"admin" yaml:"admin"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`

	// 运行时标志，由命令行参数设置
	ForceMigrate bool `mapstructure:"-" yaml:"-"`
	MigrateOnly  bool `mapstructure:"-" yaml:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// AdminConfig 首次启动时创建的管理员账号，密码为空则跳过
type AdminConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"password"`
}

// LogConfig 日志级别为空时按 server.mode 决定
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests" yaml:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes" yaml:"window_minutes"`
}

// AIConfig 测验内容生成所用的AI接口配置
type AIConfig struct {
	BaseURL         string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	Model           string  `mapstructure:"model" yaml:"model"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries      int     `mapstructure:"max_retries" yaml:"max_retries"`
	RetryWaitMillis int     `mapstructure:"retry_wait_millis" yaml:"retry_wait_millis"`
}

// Timeout 单次生成请求的超时时间
func (c AIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultAITimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
	Mode string `mapstructure:"mode" yaml:"mode"`
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	User      string `mapstructure:"user" yaml:"user"`
	Password  string `mapstructure:"password" yaml:"password"`
	DBName    string `mapstructure:"dbname" yaml:"dbname"`
	Charset   string `mapstructure:"charset" yaml:"charset"`
	ParseTime bool   `mapstructure:"parsetime" yaml:"parsetime"`
	SSLMode   string `mapstructure:"sslmode" yaml:"sslmode"`
	// sqlite 文件路径，":memory:" 用于本地调试
	Path string `mapstructure:"path" yaml:"path"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret" yaml:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours" yaml:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type" yaml:"type"`
	LocalPath     string `mapstructure:"local_path" yaml:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint" yaml:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key" yaml:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key" yaml:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket" yaml:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl" yaml:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint" yaml:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key" yaml:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key" yaml:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket" yaml:"oss_bucket"`
	// 是否归档生成的测验内容
	ArchiveQuizzes bool `mapstructure:"archive_quizzes" yaml:"archive_quizzes"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint" yaml:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// EventsConfig 测验事件通道：gochannel（进程内）或 kafka
type EventsConfig struct {
	Driver  string   `mapstructure:"driver" yaml:"driver"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

const (
	DefaultAIBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultAIModel       = "gemini-2.5-flash"
	DefaultAITemperature = 0.7
	DefaultAITimeout     = 60 * time.Second
	DefaultEventsTopic   = "quiz-events"
)

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.charset", "utf8mb4")
	viper.SetDefault("database.parsetime", true)
	viper.SetDefault("jwt.expire_hours", 24)

	viper.SetDefault("ai.base_url", DefaultAIBaseURL)
	viper.SetDefault("ai.model", DefaultAIModel)
	viper.SetDefault("ai.temperature", DefaultAITemperature)
	viper.SetDefault("ai.timeout_seconds", int(DefaultAITimeout/time.Second))
	viper.SetDefault("ai.max_retries", 1)
	viper.SetDefault("ai.retry_wait_millis", 2000)

	viper.SetDefault("events.driver", "gochannel")
	viper.SetDefault("events.topic", DefaultEventsTopic)

	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "uploads")

	viper.SetDefault("rate_limit.max_requests", 600)
	viper.SetDefault("rate_limit.window_minutes", 1)

	viper.SetDefault("log.file", "logs/app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)

	viper.SetDefault("admin.username", "admin")
	viper.SetDefault("admin.email", "admin@localhost")
}

func LoadConfig(path string) (*Config, error) {
	// .env 可选，主要用于本地开发
	_ = godotenv.Load()

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("EDU_QUIZ")
	viper.AutomaticEnv()
	setDefaults()

	// Database
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")
	viper.BindEnv("database.path", "DATABASE_PATH")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI
	viper.BindEnv("ai.base_url", "AI_BASE_URL")
	viper.BindEnv("ai.api_key", "AI_API_KEY", "GOOGLE_API_KEY")
	viper.BindEnv("ai.model", "AI_MODEL")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Admin
	viper.BindEnv("admin.username", "ADMIN_USERNAME")
	viper.BindEnv("admin.email", "ADMIN_EMAIL")
	viper.BindEnv("admin.password", "ADMIN_PASSWORD")

	// Events
	viper.BindEnv("events.driver", "EVENTS_DRIVER")
	viper.BindEnv("events.brokers", "KAFKA_BROKERS")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Log
	viper.BindEnv("log.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 启动前校验配置
func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	switch c.Database.Driver {
	case "", "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Events.Driver {
	case "", "gochannel":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events driver kafka requires at least one broker")
		}
	default:
		return fmt.Errorf("unsupported events driver %q", c.Events.Driver)
	}

	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai temperature %.2f out of range [0,2]", c.AI.Temperature)
	}

	return nil
}
