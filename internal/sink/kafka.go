package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wisefido-iv/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// 报警生命周期事件
const (
	EventAlertCreated      = "created"
	EventAlertStateChanged = "state_changed"
)

// AlertEvent Kafka 报警事件
type AlertEvent struct {
	Event      string             `json:"event"`
	Record     models.AlertRecord `json:"record"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// MessageWriter kafka.Writer 的写入部分
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter 按床位号分区（同一床位的事件保持顺序）
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// KafkaRecordPublisher 报警记录变更写入 Kafka（供下游统计/审计）
type KafkaRecordPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaRecordPublisher 创建 Kafka 事件发布
func NewKafkaRecordPublisher(writer MessageWriter, logger *zap.Logger) *KafkaRecordPublisher {
	return &KafkaRecordPublisher{
		writer: writer,
		logger: logger,
	}
}

// SaveRecord 发布 created 事件
func (p *KafkaRecordPublisher) SaveRecord(ctx context.Context, rec models.AlertRecord) error {
	return p.emit(ctx, EventAlertCreated, rec)
}

// UpdateRecordState 发布 state_changed 事件
func (p *KafkaRecordPublisher) UpdateRecordState(ctx context.Context, rec models.AlertRecord) error {
	return p.emit(ctx, EventAlertStateChanged, rec)
}

// Close 关闭 writer
func (p *KafkaRecordPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaRecordPublisher) emit(ctx context.Context, event string, rec models.AlertRecord) error {
	payload, err := json.Marshal(AlertEvent{Event: event, Record: rec, OccurredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(strconv.Itoa(rec.BedID)),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to write alert event: %w", err)
	}

	p.logger.Debug("Published IV alert event",
		zap.String("event", event),
		zap.String("record_id", rec.ID),
	)
	return nil
}
