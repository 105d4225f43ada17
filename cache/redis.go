package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kinder-payment-svc/config"
	"kinder-payment-svc/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dashboardKey = "analytics:dashboard"

var ErrCacheMiss = errors.New("cache miss")

func InitRedis(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// AnalyticsCache holds the last computed admin dashboard.
type AnalyticsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewAnalyticsCache(rdb *redis.Client, ttl time.Duration) *AnalyticsCache {
	return &AnalyticsCache{rdb: rdb, ttl: ttl}
}

func (c *AnalyticsCache) GetDashboard(ctx context.Context) (models.Dashboard, error) {
	var d models.Dashboard
	data, err := c.rdb.Get(ctx, dashboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return d, ErrCacheMiss
	}
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("failed to decode cached dashboard: %w", err)
	}
	return d, nil
}

func (c *AnalyticsCache) SetDashboard(ctx context.Context, d models.Dashboard) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, dashboardKey, data, c.ttl).Err()
}

func (c *AnalyticsCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, dashboardKey).Err()
}
