// Package monitor 床位周期监测与全局巡检
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wisefido-iv/internal/models"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	DefaultMaxBeds       = 8
	DefaultTickInterval  = 30 * time.Second
	DefaultSweepInterval = 60 * time.Second
)

// 触发来源（日志与指标标签）
const (
	TriggerTick   = "tick"
	TriggerSweep  = "sweep"
	TriggerManual = "manual"
)

// ErrInvalidBed 床位号超出 1..MaxBeds
var ErrInvalidBed = errors.New("invalid bed id")

// DataSource 床位读数来源；床位空闲时返回 nil, nil
type DataSource interface {
	GetBedReading(ctx context.Context, bedID int) (*models.BedReading, error)
}

// readingRemover 可删除床位读数的数据源
type readingRemover interface {
	DeleteBedReading(ctx context.Context, bedID int) error
}

// Evaluator 规则评估
type Evaluator interface {
	Evaluate(reading models.BedReading, thresholds models.SafetyThresholds) []models.AlertCandidate
}

// Dispatcher 报警分发
type Dispatcher interface {
	Dispatch(ctx context.Context, candidates []models.AlertCandidate)
	Clear(ctx context.Context, bedID int)
}

// Recorder 指标上报
type Recorder interface {
	EvaluationRan(trigger string)
	ActiveSessions(n int)
}

// Options 监测配置
type Options struct {
	MaxBeds       int
	TickInterval  time.Duration
	SweepInterval time.Duration
	Thresholds    models.SafetyThresholds
	Clock         clock.Clock
	Metrics       Recorder
}

// Supervisor 持有全部床位监测会话，并运行全局巡检
type Supervisor struct {
	opts       Options
	source     DataSource
	evaluator  Evaluator
	dispatcher Dispatcher
	clock      clock.Clock
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[int]*bedMonitor
}

// NewSupervisor 创建监测器；零值配置项取默认值
func NewSupervisor(opts Options, source DataSource, evaluator Evaluator, dispatcher Dispatcher, logger *zap.Logger) *Supervisor {
	if opts.MaxBeds <= 0 {
		opts.MaxBeds = DefaultMaxBeds
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Supervisor{
		opts:       opts,
		source:     source,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		clock:      opts.Clock,
		logger:     logger,
		sessions:   make(map[int]*bedMonitor),
	}
}

// Thresholds 当前生效的安全阈值
func (s *Supervisor) Thresholds() models.SafetyThresholds {
	return s.opts.Thresholds
}

// MaxBeds 床位上限
func (s *Supervisor) MaxBeds() int {
	return s.opts.MaxBeds
}

// StartMonitoring 开始监测床位；已在监测时先停止旧会话再重新开始
func (s *Supervisor) StartMonitoring(bedID int) error {
	if err := s.validBed(bedID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.sessions[bedID]; ok {
		delete(s.sessions, bedID)
		old.stop()
	}

	m := newBedMonitor(bedID, s.clock, s.opts.TickInterval)
	m.start(s.tick)
	s.sessions[bedID] = m
	s.reportSessionsLocked()

	s.logger.Info("Started bed monitoring",
		zap.Int("bed_id", bedID),
		zap.Duration("interval", s.opts.TickInterval),
	)
	return nil
}

// StopMonitoring 停止监测床位并清除其报警记录；返回是否存在会话
func (s *Supervisor) StopMonitoring(ctx context.Context, bedID int) bool {
	if !s.stopSession(bedID) {
		return false
	}
	s.dispatcher.Clear(ctx, bedID)
	return true
}

// ClearBed 清床：停止监测，清除报警记录和床位读数
func (s *Supervisor) ClearBed(ctx context.Context, bedID int) error {
	if err := s.validBed(bedID); err != nil {
		return err
	}
	s.stopSession(bedID)
	s.dispatcher.Clear(ctx, bedID)

	if r, ok := s.source.(readingRemover); ok {
		if err := r.DeleteBedReading(ctx, bedID); err != nil {
			s.logger.Error("Failed to delete bed reading", zap.Int("bed_id", bedID), zap.Error(err))
			return fmt.Errorf("failed to delete bed reading: %w", err)
		}
	}

	s.logger.Info("Cleared bed", zap.Int("bed_id", bedID))
	return nil
}

// stopSession 取消床位会话（等待进行中的 tick 结束）
func (s *Supervisor) stopSession(bedID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.sessions[bedID]
	if !ok {
		return false
	}
	delete(s.sessions, bedID)
	m.stop()
	s.reportSessionsLocked()

	s.logger.Info("Stopped bed monitoring", zap.Int("bed_id", bedID))
	return true
}

// Sessions 会话快照（按床位号排序）
func (s *Supervisor) Sessions() []models.MonitoringSession {
	s.mu.Lock()
	monitors := make([]*bedMonitor, 0, len(s.sessions))
	for _, m := range s.sessions {
		monitors = append(monitors, m)
	}
	s.mu.Unlock()

	sessions := make([]models.MonitoringSession, 0, len(monitors))
	for _, m := range monitors {
		sessions = append(sessions, m.snapshot())
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].BedID < sessions[j].BedID })
	return sessions
}

// IsMonitoring 床位是否有活动会话
func (s *Supervisor) IsMonitoring(bedID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[bedID]
	return ok
}

// EvaluateNow 同步评估（不投递、不影响会话）
func (s *Supervisor) EvaluateNow(reading models.BedReading, thresholds models.SafetyThresholds) []models.AlertCandidate {
	return s.evaluator.Evaluate(reading, thresholds)
}

// CheckBed 立即对床位执行一次 读取→评估→投递
func (s *Supervisor) CheckBed(ctx context.Context, bedID int) ([]models.AlertCandidate, error) {
	if err := s.validBed(bedID); err != nil {
		return nil, err
	}
	_, candidates, err := s.check(ctx, bedID, TriggerManual)
	return candidates, err
}

// Start 运行全局巡检，直到 ctx 结束
func (s *Supervisor) Start(ctx context.Context) error {
	s.logger.Info("IV monitoring supervisor started",
		zap.Int("max_beds", s.opts.MaxBeds),
		zap.Duration("sweep_interval", s.opts.SweepInterval),
	)

	ticker := s.clock.Ticker(s.opts.SweepInterval)
	defer ticker.Stop()

	// 立即执行一次
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("IV monitoring supervisor stopped")
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop 停止所有床位会话（服务关闭），报警记录保留
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for bedID, m := range s.sessions {
		delete(s.sessions, bedID)
		m.stop()
	}
	s.reportSessionsLocked()
}

// sweep 巡检所有床位；已有会话的床位由其自身 tick 负责
func (s *Supervisor) sweep(ctx context.Context) {
	checked := 0
	for bedID := 1; bedID <= s.opts.MaxBeds; bedID++ {
		if ctx.Err() != nil {
			return
		}
		if s.IsMonitoring(bedID) {
			continue
		}
		reading, _, err := s.check(ctx, bedID, TriggerSweep)
		if err != nil {
			// 继续下一个床位
			continue
		}
		if reading != nil {
			checked++
		}
	}

	s.logger.Debug("IV sweep completed", zap.Int("occupied_checked", checked))
}

func (s *Supervisor) tick(ctx context.Context, m *bedMonitor) {
	bedID := m.snapshot().BedID
	reading, _, _ := s.check(ctx, bedID, TriggerTick)
	m.observe(reading, s.clock.Now())
}

// check 读取→评估→投递；床位空闲返回 nil 读数
func (s *Supervisor) check(ctx context.Context, bedID int, trigger string) (*models.BedReading, []models.AlertCandidate, error) {
	reading, err := s.source.GetBedReading(ctx, bedID)
	if err != nil {
		s.logger.Warn("Failed to get bed reading",
			zap.Int("bed_id", bedID),
			zap.String("trigger", trigger),
			zap.Error(err),
		)
		return nil, nil, fmt.Errorf("failed to get bed reading: %w", err)
	}
	if reading == nil || (trigger == TriggerSweep && !reading.Occupied()) {
		return nil, nil, nil
	}
	reading.BedID = bedID

	candidates := s.evaluator.Evaluate(*reading, s.opts.Thresholds)
	if s.opts.Metrics != nil {
		s.opts.Metrics.EvaluationRan(trigger)
	}
	if len(candidates) > 0 {
		s.dispatcher.Dispatch(ctx, candidates)
	}

	s.logger.Debug("Bed evaluated",
		zap.Int("bed_id", bedID),
		zap.String("trigger", trigger),
		zap.Int("candidate_count", len(candidates)),
	)
	return reading, candidates, nil
}

func (s *Supervisor) validBed(bedID int) error {
	if bedID < 1 || bedID > s.opts.MaxBeds {
		return fmt.Errorf("%w: %d (1..%d)", ErrInvalidBed, bedID, s.opts.MaxBeds)
	}
	return nil
}

func (s *Supervisor) reportSessionsLocked() {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ActiveSessions(len(s.sessions))
	}
}
