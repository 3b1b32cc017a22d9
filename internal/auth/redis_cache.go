package auth

import (
	"context"
	"fmt"
	"time"

	"ms-admission/internal/logger"

	"github.com/go-redis/redis/v8"
)

// InitializeRoleCache connects to Redis and checks the connection.
func InitializeRoleCache(ctx context.Context, redisAddr string, log *logger.Logger) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		DB:       0,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Error("AUTH", fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
		_ = redisClient.Close()
		return nil, err
	}

	log.Info("AUTH", fmt.Sprintf("Connected to Redis at %s for staff role caching", redisAddr))
	return redisClient, nil
}
