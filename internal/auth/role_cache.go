package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-admission/internal/models"

	"github.com/go-redis/redis/v8"
)

const RoleKeyPrefix = "staff_role:"

// RoleCache holds recently resolved staff roles keyed by token subject.
type RoleCache interface {
	Get(ctx context.Context, userID string) (*models.Staff, error)
	Set(ctx context.Context, staff *models.Staff) error
	Invalidate(ctx context.Context, userID string) error
}

type cachedRole struct {
	Role        models.Role `json:"role"`
	DisplayName string      `json:"display_name,omitempty"`
	Email       string      `json:"email,omitempty"`
}

// RedisRoleCache stores roles as JSON with a TTL. A miss returns nil, nil.
type RedisRoleCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisRoleCache(client *redis.Client, ttl time.Duration) *RedisRoleCache {
	return &RedisRoleCache{Client: client, TTL: ttl}
}

func roleKey(userID string) string {
	return RoleKeyPrefix + userID
}

func (c *RedisRoleCache) Get(ctx context.Context, userID string) (*models.Staff, error) {
	raw, err := c.Client.Get(ctx, roleKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role from Redis: %w", err)
	}

	var cached cachedRole
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached role: %w", err)
	}
	return &models.Staff{UserID: userID, Role: cached.Role, DisplayName: cached.DisplayName, Email: cached.Email}, nil
}

func (c *RedisRoleCache) Set(ctx context.Context, staff *models.Staff) error {
	raw, err := json.Marshal(cachedRole{Role: staff.Role, DisplayName: staff.DisplayName, Email: staff.Email})
	if err != nil {
		return fmt.Errorf("failed to marshal role: %w", err)
	}
	if err := c.Client.Set(ctx, roleKey(staff.UserID), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store role in Redis: %w", err)
	}
	return nil
}

func (c *RedisRoleCache) Invalidate(ctx context.Context, userID string) error {
	return c.Client.Del(ctx, roleKey(userID)).Err()
}
