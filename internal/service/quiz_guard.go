package service

import (
	"context"
	"edu_quiz_backend/internal/util"
	"edu_quiz_backend/pkg/logger"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartGuard 防止同一课程并发生成多份测验。release 必须在生成结束后调用
type StartGuard interface {
	Acquire(ctx context.Context, courseID uint) (release func(), err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStartGuard 基于 SETNX 的短期锁，TTL 覆盖一次完整的生成（含重试）
type RedisStartGuard struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewRedisStartGuard(rdb *redis.Client, ttl time.Duration) *RedisStartGuard {
	return &RedisStartGuard{Redis: rdb, TTL: ttl}
}

func startGuardKey(courseID uint) string {
	return fmt.Sprintf("quiz:start:course:%d", courseID)
}

func (g *RedisStartGuard) Acquire(ctx context.Context, courseID uint) (func(), error) {
	key := startGuardKey(courseID)
	token := uuid.NewString()

	ok, err := g.Redis.SetNX(ctx, key, token, g.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring quiz start guard: %w", err)
	}
	if !ok {
		return nil, util.ErrQuizStartInProgress
	}

	return func() { g.release(courseID, token) }, nil
}

// release 只删除自己持有的锁；失败时锁会在 TTL 后自动过期
func (g *RedisStartGuard) release(courseID uint, token string) {
	// 请求 ctx 可能已取消，用独立的短超时释放
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, g.Redis, []string{startGuardKey(courseID)}, token).Err(); err != nil {
		logger.Log.Warn("Failed to release quiz start guard",
			zap.Uint("course_id", courseID),
			zap.Duration("expires_in", g.TTL),
			zap.Error(err))
	}
}
