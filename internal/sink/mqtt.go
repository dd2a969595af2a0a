package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-iv/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTSink 通知发布到护士站 MQTT 主题
// 主题：<prefix>/bed/<id>/blocking | transient | dismiss，<prefix>/sound
type MQTTSink struct {
	publisher Publisher
	prefix    string
	qos       byte
	logger    *zap.Logger
}

// NewMQTTSink 创建 MQTT 通道
func NewMQTTSink(publisher Publisher, prefix string, qos byte, logger *zap.Logger) *MQTTSink {
	return &MQTTSink{
		publisher: publisher,
		prefix:    prefix,
		qos:       qos,
		logger:    logger,
	}
}

// BedTopic 床位主题
func (s *MQTTSink) BedTopic(bedID int, kind string) string {
	return fmt.Sprintf("%s/bed/%d/%s", s.prefix, bedID, kind)
}

// PresentBlocking critical 报警（retained，新连接的护士站也能看到）
func (s *MQTTSink) PresentBlocking(_ context.Context, rec models.AlertRecord) error {
	return s.publish(s.BedTopic(rec.BedID, "blocking"), true, rec)
}

// PresentTransient warning 报警
func (s *MQTTSink) PresentTransient(_ context.Context, rec models.AlertRecord, d time.Duration) error {
	return s.publish(s.BedTopic(rec.BedID, "transient"), false, TransientPayload{Record: rec, DurationMs: d.Milliseconds()})
}

// PlaySound 提示音
func (s *MQTTSink) PlaySound(_ context.Context, severity models.Severity) error {
	return s.publish(s.prefix+"/sound", false, SoundPayload{Severity: severity})
}

// DismissBlocking 解除阻塞提示，同时清除 retained 消息
func (s *MQTTSink) DismissBlocking(_ context.Context, bedID int) error {
	if err := s.publisher.Publish(s.BedTopic(bedID, "blocking"), s.qos, true, []byte{}); err != nil {
		return err
	}
	return s.publish(s.BedTopic(bedID, "dismiss"), false, DismissPayload{BedID: bedID})
}

func (s *MQTTSink) publish(topic string, retained bool, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal mqtt payload: %w", err)
	}
	if err := s.publisher.Publish(topic, s.qos, retained, payload); err != nil {
		return err
	}

	s.logger.Debug("Published IV notification to MQTT", zap.String("topic", topic))
	return nil
}
