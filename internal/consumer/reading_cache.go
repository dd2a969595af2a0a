// Package consumer Redis 数据读取：床位输液读数（床旁网关写入）与活动报警快照
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-iv/internal/config"
	"wisefido-iv/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ReadingCache 床位读数缓存（JSON，键如 "iv:bed:1:reading"）
type ReadingCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewReadingCache 创建读数缓存
func NewReadingCache(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *ReadingCache {
	return &ReadingCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *ReadingCache) key(bedID int) string {
	return fmt.Sprintf("%s%d%s",
		c.config.IV.ReadingCache.KeyPrefix,
		bedID,
		c.config.IV.ReadingCache.KeySuffix,
	)
}

// GetBedReading 读取床位读数；键不存在（床位空闲）返回 nil, nil
func (c *ReadingCache) GetBedReading(ctx context.Context, bedID int) (*models.BedReading, error) {
	val, err := c.redisClient.Get(ctx, c.key(bedID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get reading cache: %w", err)
	}

	var reading models.BedReading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bed reading: %w", err)
	}
	reading.BedID = bedID
	reading.ApplyDefaults()

	return &reading, nil
}

// PutBedReading 写入床位读数；ttl 为 0 时不过期
func (c *ReadingCache) PutBedReading(ctx context.Context, reading models.BedReading, ttl time.Duration) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal bed reading: %w", err)
	}

	key := c.key(reading.BedID)
	if err := c.redisClient.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set reading cache: %w", err)
	}

	c.logger.Debug("Updated reading cache",
		zap.Int("bed_id", reading.BedID),
		zap.String("key", key),
	)
	return nil
}

// DeleteBedReading 删除床位读数（出院/清床）
func (c *ReadingCache) DeleteBedReading(ctx context.Context, bedID int) error {
	if err := c.redisClient.Del(ctx, c.key(bedID)).Err(); err != nil {
		return fmt.Errorf("failed to delete reading cache: %w", err)
	}
	return nil
}
