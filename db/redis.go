// db/redis.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
)

var RedisClient *redis.Client

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		} else {
			logger.Info("Redis connection closed successfully")
		}
	}
}

func CacheUserShadow(ctx context.Context, shadow *model.UserShadow) error {
	shadowJSON, err := json.Marshal(shadow)
	if err != nil {
		return fmt.Errorf("failed to marshal user shadow: %w", err)
	}

	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	pipe := RedisClient.Pipeline()
	pipe.Set(ctx, fmt.Sprintf("shadow:id:%s", shadow.ID), shadowJSON, defaultTTL)
	pipe.Set(ctx, fmt.Sprintf("shadow:email:%s", shadow.Email), shadowJSON, defaultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache user shadow: %w", err)
	}

	logger.Debug("User shadow cached successfully", zap.String("shadowID", shadow.ID))
	return nil
}

func GetCachedUserShadowByEmail(ctx context.Context, email string) (*model.UserShadow, error) {
	key := fmt.Sprintf("shadow:email:%s", email)
	shadowJSON, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		logger.Debug("User shadow not found in cache", zap.String("email", email))
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user shadow from cache: %w", err)
	}

	var shadow model.UserShadow
	if err := json.Unmarshal([]byte(shadowJSON), &shadow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user shadow: %w", err)
	}
	return &shadow, nil
}

func DeleteCachedUserShadow(ctx context.Context, shadow *model.UserShadow) error {
	keys := []string{
		fmt.Sprintf("shadow:id:%s", shadow.ID),
		fmt.Sprintf("shadow:email:%s", shadow.Email),
	}
	if err := RedisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user shadow from cache: %w", err)
	}
	return nil
}

func CacheChatflowCost(ctx context.Context, chatflowID string, cost float64) error {
	key := fmt.Sprintf("chatflow:cost:%s", chatflowID)
	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	if err := RedisClient.Set(ctx, key, cost, defaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache chatflow cost: %w", err)
	}
	logger.Debug("Chatflow cost cached", zap.String("chatflowID", chatflowID), zap.Float64("cost", cost))
	return nil
}

// GetCachedChatflowCost returns (cost, true) on a hit. A miss is not an error.
func GetCachedChatflowCost(ctx context.Context, chatflowID string) (float64, bool, error) {
	key := fmt.Sprintf("chatflow:cost:%s", chatflowID)
	cost, err := RedisClient.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("failed to get chatflow cost from cache: %w", err)
	}
	return cost, true, nil
}

// AcquireUserLock takes the per-user reservation lock. Balance read and
// deduction must happen under this lock; without it two concurrent turns can
// both observe a sufficient balance and overspend past zero.
func AcquireUserLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("billing:lock:%s", userID)
	acquired, err := RedisClient.SetNX(ctx, key, time.Now().UnixNano(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire user lock: %w", err)
	}
	return acquired, nil
}

func ReleaseUserLock(ctx context.Context, userID string) error {
	key := fmt.Sprintf("billing:lock:%s", userID)
	if err := RedisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release user lock: %w", err)
	}
	return nil
}

func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Bool("allowed", allowed))

	return allowed, nil
}
