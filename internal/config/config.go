// Package config 输液监测服务配置：环境变量（可选 .env）+ 可选规则文件，由 viper 加载
package config

import (
	"errors"
	"fmt"
	"time"

	"wisefido-iv/internal/common/config"
	"wisefido-iv/internal/models"

	"github.com/spf13/viper"
)

// 历史记录存储
const (
	HistoryDriverPostgres = "postgres"
	HistoryDriverSQLite   = "sqlite"
	HistoryDriverNone     = "none"
)

// ErrInvalidConfig 配置非法
var ErrInvalidConfig = errors.New("invalid config")

// Config 输液监测服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig
	Kafka    config.KafkaConfig

	// 呼叫系统 webhook（仅 critical）
	Pager struct {
		WebhookURL string
		RetryCount int
		Timeout    time.Duration
	}

	// 护理记录存储
	History struct {
		Driver     string // postgres / sqlite / none
		SQLitePath string
	}

	HTTP struct {
		Addr string
	}

	// 输液监测配置
	IV struct {
		MaxBeds           int           // 床位上限，默认 8
		BedTickInterval   time.Duration // 单床位检查间隔，默认 30 秒
		SweepInterval     time.Duration // 全局巡检间隔，默认 60 秒
		TransientDuration time.Duration // warning 提示时长，默认 6 秒
		DedupeWindow      time.Duration // 重复报警抑制窗口，默认 0（不抑制）
		MaxRecordsPerBed  int           // 每床位保留的报警记录上限，默认 50

		// Redis 读数缓存，键如 "iv:bed:1:reading"
		ReadingCache struct {
			KeyPrefix string
			KeySuffix string
			TTL       time.Duration // 经接口写入的读数过期时间，0 表示不过期
		}

		// Redis 活动报警快照，键如 "iv:bed:1:alerts"
		AlertCache struct {
			KeyPrefix string
			KeySuffix string
			TTL       time.Duration
		}

		NotificationStream string // 通知 Redis Stream
		StreamMaxLen       int64

		RulesFile   string // 可选，YAML/JSON，包含 thresholds 与 remediation
		Thresholds  models.SafetyThresholds
		Remediation map[string][]string // 规则键（如 "flow_rate.low"）→ 处置措施
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置：.env（存在时）→ 环境变量 → 规则文件，最后校验
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // .env 不存在时忽略

	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}

	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetInt("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Database = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSLMODE")
	cfg.Database.MaxConns = v.GetInt("DB_MAX_CONNS")
	cfg.Database.MaxIdle = v.GetInt("DB_MAX_IDLE")

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.MQTT.Broker = v.GetString("MQTT_BROKER")
	cfg.MQTT.ClientID = v.GetString("MQTT_CLIENT_ID")
	cfg.MQTT.Username = v.GetString("MQTT_USERNAME")
	cfg.MQTT.Password = v.GetString("MQTT_PASSWORD")
	cfg.MQTT.QoS = byte(v.GetUint("MQTT_QOS"))
	cfg.MQTT.TopicPrefix = v.GetString("MQTT_TOPIC_PREFIX")

	cfg.Kafka.Brokers = config.SplitBrokers(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.Topic = v.GetString("KAFKA_ALERT_TOPIC")

	cfg.Pager.WebhookURL = v.GetString("PAGER_WEBHOOK_URL")
	cfg.Pager.RetryCount = v.GetInt("PAGER_RETRY_COUNT")
	cfg.Pager.Timeout = millis(v, "PAGER_TIMEOUT_MS")

	cfg.History.Driver = v.GetString("HISTORY_DRIVER")
	cfg.History.SQLitePath = v.GetString("SQLITE_PATH")

	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")

	cfg.IV.MaxBeds = v.GetInt("IV_MAX_BEDS")
	cfg.IV.BedTickInterval = millis(v, "IV_BED_TICK_INTERVAL_MS")
	cfg.IV.SweepInterval = millis(v, "IV_SWEEP_INTERVAL_MS")
	cfg.IV.TransientDuration = millis(v, "IV_TRANSIENT_DURATION_MS")
	cfg.IV.DedupeWindow = millis(v, "IV_DEDUPE_WINDOW_MS")
	cfg.IV.MaxRecordsPerBed = v.GetInt("IV_MAX_RECORDS_PER_BED")
	cfg.IV.ReadingCache.KeyPrefix = v.GetString("IV_READING_KEY_PREFIX")
	cfg.IV.ReadingCache.KeySuffix = v.GetString("IV_READING_KEY_SUFFIX")
	cfg.IV.ReadingCache.TTL = time.Duration(v.GetInt64("IV_READING_TTL_S")) * time.Second
	cfg.IV.AlertCache.KeyPrefix = v.GetString("IV_ALERT_KEY_PREFIX")
	cfg.IV.AlertCache.KeySuffix = v.GetString("IV_ALERT_KEY_SUFFIX")
	cfg.IV.AlertCache.TTL = time.Duration(v.GetInt64("IV_ALERT_CACHE_TTL_S")) * time.Second
	cfg.IV.NotificationStream = v.GetString("IV_NOTIFICATION_STREAM")
	cfg.IV.StreamMaxLen = v.GetInt64("IV_STREAM_MAX_LEN")
	cfg.IV.RulesFile = v.GetString("IV_RULES_FILE")
	cfg.IV.Thresholds = models.DefaultThresholds()

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")

	if cfg.IV.RulesFile != "" {
		if err := loadRules(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "owlrd")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE", 5)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_CLIENT_ID", "wisefido-iv")
	v.SetDefault("MQTT_USERNAME", "")
	v.SetDefault("MQTT_PASSWORD", "")
	v.SetDefault("MQTT_QOS", 1)
	v.SetDefault("MQTT_TOPIC_PREFIX", "wisefido/iv")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_ALERT_TOPIC", "iv.alert-events")

	v.SetDefault("PAGER_WEBHOOK_URL", "")
	v.SetDefault("PAGER_RETRY_COUNT", 2)
	v.SetDefault("PAGER_TIMEOUT_MS", 5000)

	v.SetDefault("HISTORY_DRIVER", HistoryDriverPostgres)
	v.SetDefault("SQLITE_PATH", "wisefido-iv.db")

	v.SetDefault("HTTP_ADDR", ":8090")

	v.SetDefault("IV_MAX_BEDS", 8)
	v.SetDefault("IV_BED_TICK_INTERVAL_MS", 30000)
	v.SetDefault("IV_SWEEP_INTERVAL_MS", 60000)
	v.SetDefault("IV_TRANSIENT_DURATION_MS", 6000)
	v.SetDefault("IV_DEDUPE_WINDOW_MS", 0)
	v.SetDefault("IV_MAX_RECORDS_PER_BED", 50)
	v.SetDefault("IV_READING_KEY_PREFIX", "iv:bed:")
	v.SetDefault("IV_READING_KEY_SUFFIX", ":reading")
	v.SetDefault("IV_READING_TTL_S", 300)
	v.SetDefault("IV_ALERT_KEY_PREFIX", "iv:bed:")
	v.SetDefault("IV_ALERT_KEY_SUFFIX", ":alerts")
	v.SetDefault("IV_ALERT_CACHE_TTL_S", 86400)
	v.SetDefault("IV_NOTIFICATION_STREAM", "iv:notifications")
	v.SetDefault("IV_STREAM_MAX_LEN", 10000)
	v.SetDefault("IV_RULES_FILE", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// loadRules 读取规则文件；文件中未出现的阈值保持默认
func loadRules(cfg *Config) error {
	// 规则键本身含 "."，改用其他分隔符
	rules := viper.NewWithOptions(viper.KeyDelimiter("::"))
	rules.SetConfigFile(cfg.IV.RulesFile)
	if err := rules.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read rules file %s: %w", cfg.IV.RulesFile, err)
	}

	if rules.IsSet("thresholds") {
		if err := rules.UnmarshalKey("thresholds", &cfg.IV.Thresholds); err != nil {
			return fmt.Errorf("failed to parse thresholds: %w", err)
		}
	}
	if rules.IsSet("remediation") {
		cfg.IV.Remediation = rules.GetStringMapStringSlice("remediation")
	}
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.IV.MaxBeds < 1 {
		return fmt.Errorf("%w: IV_MAX_BEDS must be at least 1", ErrInvalidConfig)
	}
	if c.IV.BedTickInterval <= 0 || c.IV.SweepInterval <= 0 || c.IV.TransientDuration <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	if c.IV.DedupeWindow < 0 {
		return fmt.Errorf("%w: IV_DEDUPE_WINDOW_MS must not be negative", ErrInvalidConfig)
	}
	if c.IV.MaxRecordsPerBed < 1 {
		return fmt.Errorf("%w: IV_MAX_RECORDS_PER_BED must be at least 1", ErrInvalidConfig)
	}
	if c.IV.ReadingCache.TTL < 0 {
		return fmt.Errorf("%w: IV_READING_TTL_S must not be negative", ErrInvalidConfig)
	}
	switch c.History.Driver {
	case HistoryDriverPostgres, HistoryDriverNone:
	case HistoryDriverSQLite:
		if c.History.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH required for sqlite history", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown HISTORY_DRIVER %q", ErrInvalidConfig, c.History.Driver)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: HTTP_ADDR must be set", ErrInvalidConfig)
	}
	if err := c.IV.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}
