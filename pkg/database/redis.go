package database

import (
	"context"
	"fmt"

	"taskforge/configs"
	"taskforge/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ConnectRedis returns nil when Redis is unreachable. The cache layer treats
// a nil client as "no cache", so the service keeps working without Redis.
func ConnectRedis(cfg configs.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: "",
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.SystemLogger.Warn("Redis unavailable, running without cache", zap.Error(err))
		return nil
	}
	return client
}
