package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"wisefido-iv/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "owlrd", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.False(t, cfg.MQTT.Enabled())
	assert.Equal(t, "wisefido/iv", cfg.MQTT.TopicPrefix)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "iv.alert-events", cfg.Kafka.Topic)

	assert.Equal(t, HistoryDriverPostgres, cfg.History.Driver)
	assert.Equal(t, ":8090", cfg.HTTP.Addr)

	assert.Equal(t, 8, cfg.IV.MaxBeds)
	assert.Equal(t, 30*time.Second, cfg.IV.BedTickInterval)
	assert.Equal(t, 60*time.Second, cfg.IV.SweepInterval)
	assert.Equal(t, 6*time.Second, cfg.IV.TransientDuration)
	assert.Zero(t, cfg.IV.DedupeWindow)
	assert.Equal(t, "iv:bed:", cfg.IV.ReadingCache.KeyPrefix)
	assert.Equal(t, ":reading", cfg.IV.ReadingCache.KeySuffix)
	assert.Equal(t, 5*time.Minute, cfg.IV.ReadingCache.TTL)
	assert.Equal(t, 50, cfg.IV.MaxRecordsPerBed)
	assert.Equal(t, ":alerts", cfg.IV.AlertCache.KeySuffix)
	assert.Equal(t, 24*time.Hour, cfg.IV.AlertCache.TTL)
	assert.Equal(t, "iv:notifications", cfg.IV.NotificationStream)
	assert.Equal(t, models.DefaultThresholds(), cfg.IV.Thresholds)
	assert.Empty(t, cfg.IV.Remediation)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("REDIS_ADDR", "test-redis:6380")
	t.Setenv("MQTT_BROKER", "tcp://mqtt:1883")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("HISTORY_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/iv.db")
	t.Setenv("IV_MAX_BEDS", "12")
	t.Setenv("IV_BED_TICK_INTERVAL_MS", "1000")
	t.Setenv("IV_DEDUPE_WINDOW_MS", "15000")
	t.Setenv("IV_READING_TTL_S", "0")
	t.Setenv("IV_MAX_RECORDS_PER_BED", "20")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, HistoryDriverSQLite, cfg.History.Driver)
	assert.Equal(t, "/tmp/iv.db", cfg.History.SQLitePath)
	assert.Equal(t, 12, cfg.IV.MaxBeds)
	assert.Equal(t, time.Second, cfg.IV.BedTickInterval)
	assert.Equal(t, 15*time.Second, cfg.IV.DedupeWindow)
	assert.Zero(t, cfg.IV.ReadingCache.TTL)
	assert.Equal(t, 20, cfg.IV.MaxRecordsPerBed)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"IV_MAX_BEDS":             "0",
		"IV_SWEEP_INTERVAL_MS":    "0",
		"IV_DEDUPE_WINDOW_MS":     "-1",
		"IV_MAX_RECORDS_PER_BED":  "0",
		"IV_READING_TTL_S":        "-1",
		"HISTORY_DRIVER":          "mongo",
		"IV_BED_TICK_INTERVAL_MS": "-5",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(key, value)

			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_RulesFile(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `thresholds:
  flow_rate:
    min: 10
  pediatric:
    critical_ml_per_kg_h: 6
remediation:
  flow_rate.low:
    - call charge nurse
    - check IV line
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("IV_RULES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10.0, cfg.IV.Thresholds.FlowRate.Min)
	assert.Equal(t, 200.0, cfg.IV.Thresholds.FlowRate.Max)
	assert.Equal(t, 6.0, cfg.IV.Thresholds.Pediatric.CriticalMlPerKgH)
	assert.Equal(t, 18.0, cfg.IV.Thresholds.Pediatric.AgeLimit)
	assert.Equal(t, []string{"call charge nurse", "check IV line"}, cfg.IV.Remediation["flow_rate.low"])
}

func TestLoad_RulesFileInvalidThresholds(t *testing.T) {
	os.Clearenv()
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"thresholds":{"time_remaining":{"warning_minutes":10}}}`), 0o600))
	t.Setenv("IV_RULES_FILE", path)

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, models.ErrInvalidThresholds)
}

func TestLoad_MissingRulesFile(t *testing.T) {
	os.Clearenv()
	t.Setenv("IV_RULES_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
