package bootstrap

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/task"
)

// ErrRedisDisabled indicates Redis is disabled or not configured.
var ErrRedisDisabled = errors.New("redis disabled")

// CreateRedisClient creates a Redis client from config.
// Returns ErrRedisDisabled if config is nil or disabled.
func CreateRedisClient(redisCfg *config.RedisConfig) (*redis.Client, error) {
	if redisCfg == nil || !redisCfg.Enabled {
		return nil, ErrRedisDisabled
	}
	return task.NewRedisClient(task.RedisConfig{
		Address:  redisCfg.Address,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
}

// CreateTaskStore returns a redis store when enabled and an in-memory store
// otherwise. The returned close function is never nil.
func CreateTaskStore(cfg *config.RedisConfig, log logger.Logger) (task.Store, func() error, error) {
	client, err := CreateRedisClient(cfg)
	if errors.Is(err, ErrRedisDisabled) {
		log.Info("Using in-memory task store")
		return task.NewMemoryStore(task.DefaultLogTail), func() error { return nil }, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create redis client: %w", err)
	}
	log.Info("Using redis task store", logger.String("address", cfg.Address))
	store := task.NewRedisStore(client, cfg.KeyPrefix, cfg.TTL, task.DefaultLogTail)
	return store, client.Close, nil
}
