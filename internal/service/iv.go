// Package service 输液监测服务（整合各层）
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-iv/internal/common/database"
	"wisefido-iv/internal/common/mqtt"
	rediscommon "wisefido-iv/internal/common/redis"
	"wisefido-iv/internal/config"
	"wisefido-iv/internal/consumer"
	"wisefido-iv/internal/dispatcher"
	"wisefido-iv/internal/evaluator"
	"wisefido-iv/internal/httpapi"
	"wisefido-iv/internal/metrics"
	"wisefido-iv/internal/monitor"
	"wisefido-iv/internal/repository"
	"wisefido-iv/internal/sink"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// noteStore 护理记录（写入 + 查询）
type noteStore interface {
	dispatcher.HistorySink
	httpapi.NoteLister
}

// IVService 输液监测服务
type IVService struct {
	config      *config.Config
	db          *sql.DB // HISTORY_DRIVER=postgres 时连接
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger
	metrics     *metrics.Metrics

	// 各层组件
	readingCache    *consumer.ReadingCache
	alertCache      *consumer.AlertCache
	alertEventsRepo *repository.AlertEventsRepository
	sqliteNotes     *repository.SQLiteNoteStore
	kafkaPublisher  *sink.KafkaRecordPublisher
	evaluator       *evaluator.Evaluator
	dispatcher      *dispatcher.Dispatcher
	supervisor      *monitor.Supervisor
	server          *http.Server
}

// NewIVService 创建输液监测服务
func NewIVService(cfg *config.Config, logger *zap.Logger) (*IVService, error) {
	s := &IVService{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewMetrics(),
	}
	ctx := context.Background()

	// 1. 连接 Redis（读数来源 + 通知 stream，必需）
	s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, s.redisClient); err != nil {
		s.Stop()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 2. 护理记录与报警历史
	var notes noteStore
	switch cfg.History.Driver {
	case config.HistoryDriverPostgres:
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.db = db

		noteRepo := repository.NewNoteRepository(db, logger)
		if err := noteRepo.EnsureSchema(ctx); err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to ensure note schema: %w", err)
		}
		s.alertEventsRepo = repository.NewAlertEventsRepository(db, logger)
		if err := s.alertEventsRepo.EnsureSchema(ctx); err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to ensure alert event schema: %w", err)
		}
		notes = noteRepo
	case config.HistoryDriverSQLite:
		store, err := repository.NewSQLiteNoteStore(cfg.History.SQLitePath, logger)
		if err != nil {
			s.Stop()
			return nil, fmt.Errorf("failed to open sqlite note store: %w", err)
		}
		s.sqliteNotes = store
		notes = store
	}

	// 3. 通知通道：Redis stream 必选，MQTT / 呼叫 webhook 按配置启用
	notifiers := sink.Multi{
		sink.NewStreamSink(s.redisClient, cfg.IV.NotificationStream, cfg.IV.StreamMaxLen, logger),
	}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			s.Stop()
			return nil, err
		}
		s.mqttClient = client
		notifiers = append(notifiers, sink.NewMQTTSink(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger))
	}
	if cfg.Pager.WebhookURL != "" {
		notifiers = append(notifiers, sink.NewPagerSink(cfg.Pager.WebhookURL, cfg.Pager.RetryCount, cfg.Pager.Timeout, logger))
	}

	// 4. 报警记录存储
	s.readingCache = consumer.NewReadingCache(cfg, s.redisClient, logger)
	s.alertCache = consumer.NewAlertCache(cfg, s.redisClient, logger)
	stores := []dispatcher.RecordStore{s.alertCache}
	if s.alertEventsRepo != nil {
		stores = append(stores, s.alertEventsRepo)
	}
	if cfg.Kafka.Enabled() {
		s.kafkaPublisher = sink.NewKafkaRecordPublisher(sink.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		stores = append(stores, s.kafkaPublisher)
	}

	// 5. 评估 → 分发 → 监测
	clk := clock.New()
	s.evaluator = evaluator.NewEvaluator(evaluator.DefaultCatalogue().Merge(cfg.IV.Remediation), logger)

	var history dispatcher.HistorySink
	if notes != nil {
		history = notes
	}
	s.dispatcher = dispatcher.NewDispatcher(dispatcher.Options{
		TransientDuration: cfg.IV.TransientDuration,
		DedupeWindow:      cfg.IV.DedupeWindow,
		MaxRecordsPerBed:  cfg.IV.MaxRecordsPerBed,
		Clock:             clk,
		Stores:            stores,
		Metrics:           s.metrics,
	}, notifiers, history, logger)

	s.supervisor = monitor.NewSupervisor(monitor.Options{
		MaxBeds:       cfg.IV.MaxBeds,
		TickInterval:  cfg.IV.BedTickInterval,
		SweepInterval: cfg.IV.SweepInterval,
		Thresholds:    cfg.IV.Thresholds,
		Clock:         clk,
		Metrics:       s.metrics,
	}, s.readingCache, s.evaluator, s.dispatcher, logger)

	// 6. HTTP 接口
	deps := httpapi.Deps{
		Monitor:    s.supervisor,
		Alerts:     s.dispatcher,
		Calculator: s.evaluator,
		Readings:   s.readingCache,
		Snapshots:  s.alertCache,
		Clock:      clk,
		ReadingTTL: cfg.IV.ReadingCache.TTL,
	}
	if s.alertEventsRepo != nil {
		deps.History = s.alertEventsRepo
	}
	if notes != nil {
		deps.Notes = notes
	}
	s.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(deps, logger), s.metrics, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s, nil
}

// Handler HTTP 路由
func (s *IVService) Handler() http.Handler {
	return s.server.Handler
}

// Supervisor 床位监测器
func (s *IVService) Supervisor() *monitor.Supervisor {
	return s.supervisor
}

// Start 启动全局巡检与 HTTP 接口，直到 ctx 结束
func (s *IVService) Start(ctx context.Context) error {
	s.logger.Info("Starting IV monitoring service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.String("history_driver", s.config.History.Driver),
		zap.Int("max_beds", s.config.IV.MaxBeds),
	)

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	serverErr := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		if err := s.supervisor.Start(runCtx); err != nil {
			s.logger.Error("IV monitoring supervisor exited", zap.Error(err))
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown http server", zap.Error(err))
	}
	<-supervisorDone
	return runErr
}

// Stop 停止服务
func (s *IVService) Stop() error {
	s.logger.Info("Stopping IV monitoring service")

	if s.supervisor != nil {
		s.supervisor.Stop()
	}

	if s.kafkaPublisher != nil {
		if err := s.kafkaPublisher.Close(); err != nil {
			s.logger.Error("Failed to close kafka writer", zap.Error(err))
		}
	}

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if s.sqliteNotes != nil {
		if err := s.sqliteNotes.Close(); err != nil {
			s.logger.Error("Failed to close sqlite note store", zap.Error(err))
		}
	}

	// 关闭数据库连接
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}

	// 关闭 Redis 连接
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}

	return nil
}
