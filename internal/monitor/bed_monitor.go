package monitor

import (
	"context"
	"sync"
	"time"

	"wisefido-iv/internal/models"

	"github.com/benbjohnson/clock"
)

// bedMonitor 单床位的周期检查（一个 goroutine，由 ticker 驱动，tick 不会重叠）
type bedMonitor struct {
	mu      sync.Mutex
	session models.MonitoringSession

	ticker *clock.Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

// newBedMonitor ticker 在这里同步创建，保证返回后第一个周期已开始计时
func newBedMonitor(bedID int, clk clock.Clock, interval time.Duration) *bedMonitor {
	return &bedMonitor{
		session: models.MonitoringSession{
			BedID:     bedID,
			StartedAt: clk.Now(),
		},
		ticker: clk.Ticker(interval),
		done:   make(chan struct{}),
	}
}

// start 启动 tick 循环
func (m *bedMonitor) start(tick func(ctx context.Context, m *bedMonitor)) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go func() {
		defer close(m.done)
		defer m.ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.ticker.C:
				if ctx.Err() != nil {
					return
				}
				tick(ctx, m)
			}
		}
	}()
}

// stop 取消并等待 tick 循环退出；返回后不会再有 tick 执行
func (m *bedMonitor) stop() {
	m.cancel()
	<-m.done
}

// observe 记录一次 tick 的结果
func (m *bedMonitor) observe(reading *models.BedReading, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session.TickCount++
	if reading != nil {
		m.session.LastReading = reading
		evaluatedAt := at
		m.session.LastEvaluatedAt = &evaluatedAt
	}
}

func (m *bedMonitor) snapshot() models.MonitoringSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}
