package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-iv/internal/models"
)

// Notifier 通知通道
type Notifier interface {
	PresentBlocking(ctx context.Context, rec models.AlertRecord) error
	PresentTransient(ctx context.Context, rec models.AlertRecord, d time.Duration) error
	PlaySound(ctx context.Context, severity models.Severity) error
	DismissBlocking(ctx context.Context, bedID int) error
}

// Multi 依次投递到所有通道；任一通道失败不影响其他通道，错误合并返回
type Multi []Notifier

// PresentBlocking critical 报警
func (m Multi) PresentBlocking(ctx context.Context, rec models.AlertRecord) error {
	return m.each(func(n Notifier) error { return n.PresentBlocking(ctx, rec) })
}

// PresentTransient warning 报警
func (m Multi) PresentTransient(ctx context.Context, rec models.AlertRecord, d time.Duration) error {
	return m.each(func(n Notifier) error { return n.PresentTransient(ctx, rec, d) })
}

// PlaySound 提示音
func (m Multi) PlaySound(ctx context.Context, severity models.Severity) error {
	return m.each(func(n Notifier) error { return n.PlaySound(ctx, severity) })
}

// DismissBlocking 解除阻塞提示
func (m Multi) DismissBlocking(ctx context.Context, bedID int) error {
	return m.each(func(n Notifier) error { return n.DismissBlocking(ctx, bedID) })
}

func (m Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &DeliveryError{Failed: len(errs), Total: len(m), Err: errors.Join(errs...)}
}

// DeliveryError 扇出中有通道失败；Reached 表示是否至少一个通道已收到
type DeliveryError struct {
	Failed int
	Total  int
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%d of %d notifiers failed: %v", e.Failed, e.Total, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Reached 至少一个通道投递成功
func (e *DeliveryError) Reached() bool {
	return e.Failed < e.Total
}
