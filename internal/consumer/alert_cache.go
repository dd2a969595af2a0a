package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"wisefido-iv/internal/config"
	"wisefido-iv/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AlertCache 床位报警快照（Redis Hash：record_id → JSON，带 TTL），供护士站等读取
type AlertCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewAlertCache 创建报警快照缓存
func NewAlertCache(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *AlertCache {
	return &AlertCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *AlertCache) key(bedID int) string {
	return fmt.Sprintf("%s%d%s",
		c.config.IV.AlertCache.KeyPrefix,
		bedID,
		c.config.IV.AlertCache.KeySuffix,
	)
}

// SaveRecord 写入报警记录
func (c *AlertCache) SaveRecord(ctx context.Context, rec models.AlertRecord) error {
	return c.put(ctx, rec)
}

// UpdateRecordState 更新确认状态（整条覆盖）
func (c *AlertCache) UpdateRecordState(ctx context.Context, rec models.AlertRecord) error {
	return c.put(ctx, rec)
}

func (c *AlertCache) put(ctx context.Context, rec models.AlertRecord) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal alert record: %w", err)
	}

	key := c.key(rec.BedID)
	pipe := c.redisClient.TxPipeline()
	pipe.HSet(ctx, key, rec.ID, jsonData)
	if ttl := c.config.IV.AlertCache.TTL; ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set alert cache: %w", err)
	}

	c.logger.Debug("Updated alert cache",
		zap.Int("bed_id", rec.BedID),
		zap.String("record_id", rec.ID),
		zap.String("state", rec.State.String()),
	)
	return nil
}

// RemoveRecords 删除账本中已淘汰的记录
func (c *AlertCache) RemoveRecords(ctx context.Context, bedID int, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.redisClient.HDel(ctx, c.key(bedID), ids...).Err(); err != nil {
		return fmt.Errorf("failed to remove alert records: %w", err)
	}
	return nil
}

// ClearBed 删除床位快照
func (c *AlertCache) ClearBed(ctx context.Context, bedID int) error {
	if err := c.redisClient.Del(ctx, c.key(bedID)).Err(); err != nil {
		return fmt.Errorf("failed to delete alert cache: %w", err)
	}
	return nil
}

// GetBedAlerts 读取床位报警快照（按生成时间排序）
func (c *AlertCache) GetBedAlerts(ctx context.Context, bedID int) ([]models.AlertRecord, error) {
	values, err := c.redisClient.HGetAll(ctx, c.key(bedID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get alert cache: %w", err)
	}

	records := make([]models.AlertRecord, 0, len(values))
	for id, val := range values {
		var rec models.AlertRecord
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			// 跳过损坏的条目
			c.logger.Warn("Failed to unmarshal cached alert",
				zap.Int("bed_id", bedID),
				zap.String("record_id", id),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].GeneratedAt.Before(records[j].GeneratedAt)
	})
	return records, nil
}
