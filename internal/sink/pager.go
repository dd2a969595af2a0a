package sink

import (
	"context"
	"fmt"
	"time"

	"wisefido-iv/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PagerEvent 呼叫系统 webhook 请求体
type PagerEvent struct {
	Event    string          `json:"event"` // trigger / resolve
	BedID    int             `json:"bed_id"`
	RecordID string          `json:"record_id,omitempty"`
	Category models.Category `json:"category,omitempty"`
	Severity models.Severity `json:"severity,omitempty"`
	Message  string          `json:"message,omitempty"`
	Actions  []string        `json:"actions,omitempty"`
	SentAt   time.Time       `json:"sent_at"`
}

// PagerSink critical 报警推送到呼叫系统 webhook；warning 与提示音不推送
type PagerSink struct {
	httpClient *resty.Client
	webhookURL string
	logger     *zap.Logger
}

// NewPagerSink 创建呼叫通道
func NewPagerSink(webhookURL string, retryCount int, timeout time.Duration, logger *zap.Logger) *PagerSink {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &PagerSink{
		httpClient: client,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// PresentBlocking 触发呼叫
func (p *PagerSink) PresentBlocking(ctx context.Context, rec models.AlertRecord) error {
	return p.send(ctx, PagerEvent{
		Event:    "trigger",
		BedID:    rec.BedID,
		RecordID: rec.ID,
		Category: rec.Category,
		Severity: rec.Severity,
		Message:  rec.Message,
		Actions:  rec.Actions,
		SentAt:   time.Now().UTC(),
	})
}

// PresentTransient 不推送
func (p *PagerSink) PresentTransient(context.Context, models.AlertRecord, time.Duration) error {
	return nil
}

// PlaySound 不推送
func (p *PagerSink) PlaySound(context.Context, models.Severity) error {
	return nil
}

// DismissBlocking 解除呼叫
func (p *PagerSink) DismissBlocking(ctx context.Context, bedID int) error {
	return p.send(ctx, PagerEvent{
		Event:  "resolve",
		BedID:  bedID,
		SentAt: time.Now().UTC(),
	})
}

func (p *PagerSink) send(ctx context.Context, event PagerEvent) error {
	resp, err := p.httpClient.R().
		SetContext(ctx).
		SetBody(event).
		Post(p.webhookURL)
	if err != nil {
		p.logger.Error("Pager webhook call failed",
			zap.String("event", event.Event),
			zap.Int("bed_id", event.BedID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call pager webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("pager webhook returned status %d", resp.StatusCode())
	}

	p.logger.Info("Pager webhook sent",
		zap.String("event", event.Event),
		zap.Int("bed_id", event.BedID),
		zap.String("record_id", event.RecordID),
	)
	return nil
}
