package services

import (
	"context"
	"fmt"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/forgeyard/forge_api/shared"
)

type RedisService struct {
	appContext.DefaultService
	redis *redis.Client

	addr     string
	password string
	db       int
}

const REDIS_SVC = "redis_svc"

func (svc RedisService) Id() string {
	return REDIS_SVC
}

func (svc *RedisService) Configure(ctx *appContext.Context) error {
	svc.addr = shared.GetEnvString("REDIS_ADDR", "localhost:6379")
	svc.password = shared.GetEnvString("REDIS_PASSWORD", "")
	svc.db = shared.GetEnvInt("REDIS_DB", 0, 0, 15)

	svc.redis = redis.NewClient(&redis.Options{
		Addr:     svc.addr,
		Password: svc.password,
		DB:       svc.db,
	})

	return svc.DefaultService.Configure(ctx)
}

// Start only probes the connection. Whether an unreachable redis is fatal is
// decided by the services that depend on it (the token service fails hard
// when redis is its selected backend).
func (svc *RedisService) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := svc.redis.Ping(ctx).Result(); err != nil {
		log.WithError(err).WithField("addr", svc.addr).Warn("Redis unreachable at startup")
	}
	return nil
}

func (svc *RedisService) Ping(ctx context.Context) error {
	if _, err := svc.redis.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

func (svc *RedisService) Shutdown() {
	if svc.redis != nil {
		_ = svc.redis.Close()
	}
}

func (svc *RedisService) GetClient() *redis.Client {
	return svc.redis
}

func (svc *RedisService) Get(ctx context.Context, key string) (string, error) {
	result, err := svc.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

func (svc *RedisService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return svc.redis.Set(ctx, key, value, expiration).Err()
}

func (svc *RedisService) Delete(ctx context.Context, keys ...string) error {
	return svc.redis.Del(ctx, keys...).Err()
}
