package dispatcher

import (
	"context"
	"fmt"
	"time"

	"wisefido-iv/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// snoozeTimer 一个床位的延后提醒
type snoozeTimer struct {
	timer *clock.Timer
}

// Acknowledge 确认床位的 critical 报警（pending / snoozed → acknowledged）
// 有记录状态变化时解除阻塞展示（仅一次），返回变化的记录数
func (d *Dispatcher) Acknowledge(ctx context.Context, bedID int) int {
	d.mu.Lock()
	changed := d.transitionLocked(bedID, models.AckState{Status: models.AckAcknowledged},
		models.AckPending, models.AckSnoozed)
	d.cancelSnoozeLocked(bedID)
	d.mu.Unlock()

	if len(changed) == 0 {
		return 0
	}

	d.dismiss(ctx, bedID, changed[0])
	d.updateStores(ctx, changed)
	d.appendNote(ctx, bedID, fmt.Sprintf("bed %d critical alert acknowledged", bedID))

	d.logger.Info("IV alert acknowledged",
		zap.Int("bed_id", bedID),
		zap.Int("record_count", len(changed)),
	)
	return len(changed)
}

// Snooze 延后床位的 pending critical 报警 minutes 分钟
// 到期后补发一条 warning 提醒复查（不重新评估规则）；再次延后会替换原定时
func (d *Dispatcher) Snooze(ctx context.Context, bedID int, minutes int) (int, error) {
	if minutes <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSnooze, minutes)
	}

	delay := time.Duration(minutes) * time.Minute
	until := d.clock.Now().Add(delay)

	d.mu.Lock()
	changed := d.transitionLocked(bedID, models.AckState{Status: models.AckSnoozed, SnoozedUntil: &until},
		models.AckPending)
	if len(changed) == 0 {
		d.mu.Unlock()
		return 0, nil
	}
	d.cancelSnoozeLocked(bedID)
	st := &snoozeTimer{}
	template := changed[0]
	st.timer = d.clock.AfterFunc(delay, func() {
		d.snoozeExpired(bedID, st, template)
	})
	d.snoozes[bedID] = st
	d.mu.Unlock()

	d.dismiss(ctx, bedID, template)
	d.updateStores(ctx, changed)
	d.appendNote(ctx, bedID, fmt.Sprintf("bed %d critical alert snoozed for %d min", bedID, minutes))

	d.logger.Info("IV alert snoozed",
		zap.Int("bed_id", bedID),
		zap.Int("minutes", minutes),
		zap.Time("snoozed_until", until),
	)
	return len(changed), nil
}

// transitionLocked 将状态属于 from 的 critical 记录置为 to，返回变化后的快照
func (d *Dispatcher) transitionLocked(bedID int, to models.AckState, from ...models.AckStatus) []models.AlertRecord {
	var changed []models.AlertRecord
	for _, rec := range d.ledger[bedID] {
		if !rec.IsCritical() || !statusIn(rec.State.Status, from) {
			continue
		}
		rec.State = to
		if to.SnoozedUntil != nil {
			until := *to.SnoozedUntil
			rec.State.SnoozedUntil = &until
		}
		changed = append(changed, copyRecord(rec))
	}
	return changed
}

func (d *Dispatcher) cancelSnoozeLocked(bedID int) {
	if st, ok := d.snoozes[bedID]; ok {
		st.timer.Stop()
		delete(d.snoozes, bedID)
	}
}

// snoozeExpired 延后到期：补发 warning 提醒（不进入账本）
func (d *Dispatcher) snoozeExpired(bedID int, st *snoozeTimer, template models.AlertRecord) {
	d.mu.Lock()
	if d.snoozes[bedID] != st {
		// 已被确认、清除或替换
		d.mu.Unlock()
		return
	}
	delete(d.snoozes, bedID)
	d.mu.Unlock()

	ctx := context.Background()
	followUp := models.AlertRecord{
		ID: uuid.New().String(),
		AlertCandidate: models.AlertCandidate{
			BedID:     bedID,
			Category:  template.Category,
			Severity:  models.SeverityWarning,
			Message:   followUpMessage(bedID),
			Actions:   template.Actions,
			Value:     template.Value,
			Threshold: template.Threshold,
		},
		GeneratedAt: d.clock.Now(),
		State:       models.AckState{Status: models.AckPending},
	}

	if d.notifier != nil {
		if err := d.notifier.PresentTransient(ctx, followUp, d.transientDuration); err != nil {
			d.sinkFailed(string(models.ChannelTransient), followUp, err)
		}
		if err := d.notifier.PlaySound(ctx, models.SeverityWarning); err != nil {
			d.sinkFailed(string(models.ChannelSound), followUp, err)
		}
	}
	d.appendNote(ctx, bedID, followUp.Message)

	d.logger.Info("IV alert snooze expired",
		zap.Int("bed_id", bedID),
		zap.String("record_id", followUp.ID),
	)
}

func (d *Dispatcher) dismiss(ctx context.Context, bedID int, rec models.AlertRecord) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.DismissBlocking(ctx, bedID); err != nil {
		d.sinkFailed(channelDismiss, rec, err)
	}
}

func statusIn(s models.AckStatus, set []models.AckStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
