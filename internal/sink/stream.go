// Package sink 报警通知通道：Redis Stream、MQTT、呼叫 webhook、Kafka 事件
// 这些通道只负责把展示请求传给前端/外部系统，不做任何渲染
package sink

import (
	"context"
	"fmt"
	"time"

	rediscommon "wisefido-iv/internal/common/redis"
	"wisefido-iv/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Stream 消息类型
const (
	MsgTypeBlocking  = "iv.alert.blocking"
	MsgTypeTransient = "iv.alert.transient"
	MsgTypeSound     = "iv.alert.sound"
	MsgTypeDismiss   = "iv.alert.dismiss"
)

// TransientPayload warning 提示
type TransientPayload struct {
	Record     models.AlertRecord `json:"record"`
	DurationMs int64              `json:"duration_ms"`
}

// SoundPayload 提示音
type SoundPayload struct {
	Severity models.Severity `json:"severity"`
}

// DismissPayload 解除阻塞提示
type DismissPayload struct {
	BedID int `json:"bed_id"`
}

// StreamSink 通知写入 Redis Stream（前端/护士站消费）
type StreamSink struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
	logger      *zap.Logger
}

// NewStreamSink 创建 Stream 通道
func NewStreamSink(redisClient *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamSink {
	return &StreamSink{
		redisClient: redisClient,
		stream:      stream,
		maxLen:      maxLen,
		logger:      logger,
	}
}

// PresentBlocking critical 报警
func (s *StreamSink) PresentBlocking(ctx context.Context, rec models.AlertRecord) error {
	return s.publish(ctx, MsgTypeBlocking, rec)
}

// PresentTransient warning 报警
func (s *StreamSink) PresentTransient(ctx context.Context, rec models.AlertRecord, d time.Duration) error {
	return s.publish(ctx, MsgTypeTransient, TransientPayload{Record: rec, DurationMs: d.Milliseconds()})
}

// PlaySound 提示音
func (s *StreamSink) PlaySound(ctx context.Context, severity models.Severity) error {
	return s.publish(ctx, MsgTypeSound, SoundPayload{Severity: severity})
}

// DismissBlocking 解除床位的阻塞提示
func (s *StreamSink) DismissBlocking(ctx context.Context, bedID int) error {
	return s.publish(ctx, MsgTypeDismiss, DismissPayload{BedID: bedID})
}

func (s *StreamSink) publish(ctx context.Context, msgType string, data interface{}) error {
	id, err := rediscommon.PublishJSONToStream(ctx, s.redisClient, s.stream, s.maxLen, msgType, data)
	if err != nil {
		return fmt.Errorf("failed to publish %s to stream %s: %w", msgType, s.stream, err)
	}

	s.logger.Debug("Published IV notification",
		zap.String("stream", s.stream),
		zap.String("type", msgType),
		zap.String("message_id", id),
	)
	return nil
}
