// Package dispatcher 报警分发：维护报警记录账本，投递到通知/历史通道，处理确认与延后提醒
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-iv/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// NotePrefix 写入护理记录的前缀
	NotePrefix = "IV Alert: "
	// NoteCategory 护理记录类别
	NoteCategory = "iv_alert"

	// DefaultTransientDuration warning 提示的显示时长
	DefaultTransientDuration = 6 * time.Second

	// DefaultMaxRecordsPerBed 每个床位账本保留的记录上限
	DefaultMaxRecordsPerBed = 50
)

// 失败计数使用的通道名（与 models.Channel 对齐，另加 dismiss/record）
const (
	channelDismiss = "dismiss"
	channelRecord  = "record"
)

// ErrInvalidSnooze 延后分钟数必须为正
var ErrInvalidSnooze = errors.New("snooze minutes must be positive")

// NotificationSink 通知展示通道（具体实现只负责传递展示请求）
type NotificationSink interface {
	// PresentBlocking critical 报警，需确认或延后才解除
	PresentBlocking(ctx context.Context, rec models.AlertRecord) error
	// PresentTransient warning 报警，d 后自动消失
	PresentTransient(ctx context.Context, rec models.AlertRecord, d time.Duration) error
	PlaySound(ctx context.Context, severity models.Severity) error
	DismissBlocking(ctx context.Context, bedID int) error
}

// HistorySink 护理记录
type HistorySink interface {
	AppendNote(ctx context.Context, bedID int, text, category string) error
}

// RecordStore 报警记录持久化（尽力而为）
type RecordStore interface {
	SaveRecord(ctx context.Context, rec models.AlertRecord) error
	UpdateRecordState(ctx context.Context, rec models.AlertRecord) error
}

// bedClearer 可选：清床时同步清理
type bedClearer interface {
	ClearBed(ctx context.Context, bedID int) error
}

// recordRemover 可按 id 删除记录的存储（活动快照）；历史存储保留全部记录
type recordRemover interface {
	RemoveRecords(ctx context.Context, bedID int, ids []string) error
}

// Recorder 指标上报
type Recorder interface {
	AlertDispatched(category models.Category, severity models.Severity)
	SinkFailed(channel string)
}

// Options 分发器配置
type Options struct {
	TransientDuration time.Duration // <= 0 时取 DefaultTransientDuration
	DedupeWindow      time.Duration // 0 表示不去重
	MaxRecordsPerBed  int           // <= 0 时取 DefaultMaxRecordsPerBed
	Clock             clock.Clock   // nil 时使用系统时钟
	Stores            []RecordStore
	Metrics           Recorder
}

// Dispatcher 报警分发器
type Dispatcher struct {
	notifier NotificationSink
	history  HistorySink
	stores   []RecordStore
	metrics  Recorder
	clock    clock.Clock
	logger   *zap.Logger

	transientDuration time.Duration
	dedupeWindow      time.Duration
	maxRecords        int

	mu      sync.Mutex
	ledger  map[int][]*models.AlertRecord // bed_id -> 报警记录
	snoozes map[int]*snoozeTimer          // bed_id -> 待触发的延后提醒
}

// NewDispatcher 创建分发器；notifier/history 为 nil 时对应通道不投递
func NewDispatcher(opts Options, notifier NotificationSink, history HistorySink, logger *zap.Logger) *Dispatcher {
	if opts.TransientDuration <= 0 {
		opts.TransientDuration = DefaultTransientDuration
	}
	if opts.MaxRecordsPerBed <= 0 {
		opts.MaxRecordsPerBed = DefaultMaxRecordsPerBed
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Dispatcher{
		notifier:          notifier,
		history:           history,
		stores:            opts.Stores,
		metrics:           opts.Metrics,
		clock:             opts.Clock,
		logger:            logger,
		transientDuration: opts.TransientDuration,
		dedupeWindow:      opts.DedupeWindow,
		maxRecords:        opts.MaxRecordsPerBed,
		ledger:            make(map[int][]*models.AlertRecord),
		snoozes:           make(map[int]*snoozeTimer),
	}
}

// Dispatch 投递一次评估产生的全部候选报警（按列表顺序）
// 单个通道失败只记录日志，不影响其余通道和其余候选
func (d *Dispatcher) Dispatch(ctx context.Context, candidates []models.AlertCandidate) {
	if len(candidates) == 0 {
		return
	}

	records, pruned := d.record(candidates)
	d.removeFromStores(ctx, pruned)

	for _, rec := range records {
		delivered := d.deliver(ctx, rec)

		d.mu.Lock()
		rec.Delivery = delivered
		snapshot := copyRecord(rec)
		d.mu.Unlock()

		for _, store := range d.stores {
			if err := store.SaveRecord(ctx, snapshot); err != nil {
				d.sinkFailed(channelRecord, snapshot, err)
			}
		}
		if d.metrics != nil {
			d.metrics.AlertDispatched(snapshot.Category, snapshot.Severity)
		}
	}
}

// record 写入账本（pending），去重窗口内重复的候选不再生成记录
// 返回新记录，以及因超出床位上限被移除的记录 id（bed_id -> ids）
func (d *Dispatcher) record(candidates []models.AlertCandidate) ([]*models.AlertRecord, map[int][]string) {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	var pruned map[int][]string
	records := make([]*models.AlertRecord, 0, len(candidates))
	for _, c := range candidates {
		if d.duplicate(c, now) {
			d.logger.Debug("Skipping duplicate IV alert",
				zap.Int("bed_id", c.BedID),
				zap.String("category", string(c.Category)),
				zap.String("severity", string(c.Severity)),
			)
			continue
		}
		rec := &models.AlertRecord{
			ID:             uuid.New().String(),
			AlertCandidate: c,
			GeneratedAt:    now,
			State:          models.AckState{Status: models.AckPending},
		}
		d.ledger[c.BedID] = append(d.ledger[c.BedID], rec)
		records = append(records, rec)

		if ids := d.pruneLocked(c.BedID); len(ids) > 0 {
			if pruned == nil {
				pruned = make(map[int][]string)
			}
			pruned[c.BedID] = append(pruned[c.BedID], ids...)
		}
	}
	return records, pruned
}

// pruneLocked 床位记录超过上限时移除最旧的记录，先移除已确认的
func (d *Dispatcher) pruneLocked(bedID int) []string {
	ledger := d.ledger[bedID]
	excess := len(ledger) - d.maxRecords
	if excess <= 0 {
		return nil
	}

	drop := make(map[*models.AlertRecord]bool, excess)
	for _, acknowledgedOnly := range []bool{true, false} {
		for _, rec := range ledger {
			if len(drop) == excess {
				break
			}
			if acknowledgedOnly && rec.State.Status != models.AckAcknowledged {
				continue
			}
			drop[rec] = true
		}
	}

	kept := make([]*models.AlertRecord, 0, len(ledger)-excess)
	removed := make([]string, 0, excess)
	for _, rec := range ledger {
		if drop[rec] {
			removed = append(removed, rec.ID)
			continue
		}
		kept = append(kept, rec)
	}
	d.ledger[bedID] = kept
	return removed
}

func (d *Dispatcher) removeFromStores(ctx context.Context, pruned map[int][]string) {
	for bedID, ids := range pruned {
		for _, store := range d.stores {
			r, ok := store.(recordRemover)
			if !ok {
				continue
			}
			if err := r.RemoveRecords(ctx, bedID, ids); err != nil {
				d.logger.Warn("Failed to remove pruned IV alerts",
					zap.Int("bed_id", bedID),
					zap.Int("record_count", len(ids)),
					zap.Error(err),
				)
			}
		}
	}
}

// duplicate 调用方需持有 d.mu
func (d *Dispatcher) duplicate(c models.AlertCandidate, now time.Time) bool {
	if d.dedupeWindow <= 0 {
		return false
	}
	for _, rec := range d.ledger[c.BedID] {
		if rec.Category == c.Category && rec.Severity == c.Severity && now.Sub(rec.GeneratedAt) < d.dedupeWindow {
			return true
		}
	}
	return false
}

// deliver 按级别投递，返回成功的通道
func (d *Dispatcher) deliver(ctx context.Context, rec *models.AlertRecord) []models.Channel {
	var delivered []models.Channel
	snapshot := copyRecord(rec)

	if d.notifier != nil {
		if rec.IsCritical() {
			err := d.notifier.PresentBlocking(ctx, snapshot)
			delivered = d.track(delivered, models.ChannelBlocking, snapshot, err)
		} else {
			err := d.notifier.PresentTransient(ctx, snapshot, d.transientDuration)
			delivered = d.track(delivered, models.ChannelTransient, snapshot, err)
		}

		err := d.notifier.PlaySound(ctx, rec.Severity)
		delivered = d.track(delivered, models.ChannelSound, snapshot, err)
	}

	if d.history != nil {
		err := d.history.AppendNote(ctx, rec.BedID, NotePrefix+rec.Message, NoteCategory)
		delivered = d.track(delivered, models.ChannelHistory, snapshot, err)
	}

	return delivered
}

// track 记录通道结果；扇出通道部分失败时仍计入已投递（失败仍记日志和指标）
func (d *Dispatcher) track(delivered []models.Channel, ch models.Channel, rec models.AlertRecord, err error) []models.Channel {
	if err != nil {
		d.sinkFailed(string(ch), rec, err)
		if !reached(err) {
			return delivered
		}
	}
	return append(delivered, ch)
}

func reached(err error) bool {
	var partial interface{ Reached() bool }
	return errors.As(err, &partial) && partial.Reached()
}

// Records 床位报警记录快照（按生成顺序）
func (d *Dispatcher) Records(bedID int) []models.AlertRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	records := make([]models.AlertRecord, 0, len(d.ledger[bedID]))
	for _, rec := range d.ledger[bedID] {
		records = append(records, copyRecord(rec))
	}
	return records
}

// Clear 清除床位的报警记录并取消待触发的延后提醒
func (d *Dispatcher) Clear(ctx context.Context, bedID int) {
	d.mu.Lock()
	delete(d.ledger, bedID)
	d.cancelSnoozeLocked(bedID)
	d.mu.Unlock()

	for _, store := range d.stores {
		if c, ok := store.(bedClearer); ok {
			if err := c.ClearBed(ctx, bedID); err != nil {
				d.logger.Warn("Failed to clear stored IV alerts",
					zap.Int("bed_id", bedID),
					zap.Error(err),
				)
			}
		}
	}

	d.logger.Debug("Cleared IV alert ledger", zap.Int("bed_id", bedID))
}

func (d *Dispatcher) updateStores(ctx context.Context, records []models.AlertRecord) {
	for _, rec := range records {
		for _, store := range d.stores {
			if err := store.UpdateRecordState(ctx, rec); err != nil {
				d.sinkFailed(channelRecord, rec, err)
			}
		}
	}
}

func (d *Dispatcher) appendNote(ctx context.Context, bedID int, text string) {
	if d.history == nil {
		return
	}
	if err := d.history.AppendNote(ctx, bedID, NotePrefix+text, NoteCategory); err != nil {
		d.sinkFailed(string(models.ChannelHistory), models.AlertRecord{AlertCandidate: models.AlertCandidate{BedID: bedID}}, err)
	}
}

func (d *Dispatcher) sinkFailed(channel string, rec models.AlertRecord, err error) {
	d.logger.Error("IV alert sink failed",
		zap.String("channel", channel),
		zap.Int("bed_id", rec.BedID),
		zap.String("record_id", rec.ID),
		zap.String("category", string(rec.Category)),
		zap.Error(err),
	)
	if d.metrics != nil {
		d.metrics.SinkFailed(channel)
	}
}

func copyRecord(rec *models.AlertRecord) models.AlertRecord {
	out := *rec
	out.Actions = append([]string(nil), rec.Actions...)
	out.Delivery = append([]models.Channel(nil), rec.Delivery...)
	if rec.State.SnoozedUntil != nil {
		until := *rec.State.SnoozedUntil
		out.State.SnoozedUntil = &until
	}
	return out
}

func followUpMessage(bedID int) string {
	return fmt.Sprintf("Snooze expired for bed %d - please re-check", bedID)
}
