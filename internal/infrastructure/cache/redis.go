package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joacominatel/connections/internal/domain"
	"github.com/joacominatel/connections/internal/infrastructure/logging"
)

const (
	// one sorted set per ranking, members are account ids
	EarlySignalLeaderboardKey = "connections:leaderboard:early_signal"
	InfluenceLeaderboardKey   = "connections:leaderboard:influence"

	defaultConnectTimeout = 10 * time.Second
)

var (
	ErrRedisNotConnected = errors.New("redis not connected")
	ErrRedisEmpty        = errors.New("redis leaderboard is empty")
)

// RedisConfig holds configuration for Redis connection.
type RedisConfig struct {
	URL string
}

// RedisClient wraps the go-redis client with leaderboard operations.
type RedisClient struct {
	client *redis.Client
	logger *logging.Logger
}

// NewRedisClient creates a new Redis client from the config.
// returns nil if the URL is empty (redis disabled).
func NewRedisClient(cfg RedisConfig, logger *logging.Logger) (*RedisClient, error) {
	if cfg.URL == "" {
		logger.Info("redis disabled: no REDIS_URL configured")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	opts.DialTimeout = defaultConnectTimeout
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolSize = 50
	opts.MinIdleConns = 5

	return NewRedisClientFrom(redis.NewClient(opts), logger), nil
}

// NewRedisClientFrom wraps an existing go-redis client.
func NewRedisClientFrom(client *redis.Client, logger *logging.Logger) *RedisClient {
	return &RedisClient{
		client: client,
		logger: logger.WithComponent("redis"),
	}
}

// Connect tests the connection to Redis.
func (r *RedisClient) Connect(ctx context.Context) error {
	if r.client == nil {
		return ErrRedisNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	r.logger.Info("redis connected")
	return nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// LeaderboardKey returns the sorted set backing a ranking.
func LeaderboardKey(sort domain.AccountSort) string {
	if sort == domain.SortByInfluence {
		return InfluenceLeaderboardKey
	}
	return EarlySignalLeaderboardKey
}

// UpdateLeaderboards upserts an account into both rankings in one round trip.
// implements application.LeaderboardUpdater.
func (r *RedisClient) UpdateLeaderboards(ctx context.Context, accountID string, influence, earlySignal float64) error {
	if r.client == nil {
		return ErrRedisNotConnected
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, InfluenceLeaderboardKey, redis.Z{Score: influence, Member: accountID})
	pipe.ZAdd(ctx, EarlySignalLeaderboardKey, redis.Z{Score: earlySignal, Member: accountID})

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("failed to update leaderboards",
			"account_id", accountID,
			"error", err.Error(),
		)
		return fmt.Errorf("zadd failed: %w", err)
	}

	r.logger.Debug("leaderboards updated",
		"account_id", accountID,
		"influence", influence,
		"early_signal", earlySignal,
	)
	return nil
}

// TopAccounts returns account ids ordered by the ranking, highest first.
func (r *RedisClient) TopAccounts(ctx context.Context, sort domain.AccountSort, limit, offset int64) ([]string, error) {
	if r.client == nil {
		return nil, ErrRedisNotConnected
	}

	key := LeaderboardKey(sort)
	members, err := r.client.ZRevRange(ctx, key, offset, offset+limit-1).Result()
	if err != nil {
		r.logger.Error("failed to read leaderboard",
			"key", key,
			"limit", limit,
			"offset", offset,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	if len(members) == 0 {
		return nil, ErrRedisEmpty
	}

	return members, nil
}

// RemoveFromLeaderboards drops an account from both rankings.
// used when an account is deactivated.
func (r *RedisClient) RemoveFromLeaderboards(ctx context.Context, accountID string) error {
	if r.client == nil {
		return ErrRedisNotConnected
	}

	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, InfluenceLeaderboardKey, accountID)
	pipe.ZRem(ctx, EarlySignalLeaderboardKey, accountID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("zrem failed: %w", err)
	}

	r.logger.Debug("removed from leaderboards", "account_id", accountID)
	return nil
}

// Name identifies redis in readiness reports.
func (r *RedisClient) Name() string {
	return "redis"
}

// Check implements application.HealthChecker.
func (r *RedisClient) Check(ctx context.Context) error {
	if r.client == nil {
		return ErrRedisNotConnected
	}
	return r.client.Ping(ctx).Err()
}
