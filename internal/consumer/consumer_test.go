package consumer

import (
	"context"
	"testing"
	"time"

	"wisefido-iv/internal/config"
	"wisefido-iv/internal/evaluator"
	"wisefido-iv/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *config.Config) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.IV.ReadingCache.KeyPrefix = "iv:bed:"
	cfg.IV.ReadingCache.KeySuffix = ":reading"
	cfg.IV.AlertCache.KeyPrefix = "iv:bed:"
	cfg.IV.AlertCache.KeySuffix = ":alerts"
	cfg.IV.AlertCache.TTL = time.Hour

	return mr, redisClient, cfg
}

func TestReadingCache_GetBedReading_Success(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewReadingCache(cfg, client, zap.NewNop())

	require.NoError(t, mr.Set("iv:bed:2:reading",
		`{"patient_id":"P-002","ordered_rate":20,"measured_rate":18,"remaining_volume":450,"drop_factor":15,"weight_kg":62.5}`))

	reading, err := cache.GetBedReading(context.Background(), 2)

	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.Equal(t, 2, reading.BedID)
	assert.Equal(t, "P-002", reading.PatientID)
	assert.Equal(t, 18.0, reading.MeasuredRate)
	assert.Equal(t, 15, reading.DropFactor)
	require.NotNil(t, reading.WeightKg)
	assert.Equal(t, 62.5, *reading.WeightKg)
	assert.Nil(t, reading.AgeYears)
}

func TestReadingCache_GetBedReading_DefaultsDropFactor(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewReadingCache(cfg, client, zap.NewNop())

	require.NoError(t, mr.Set("iv:bed:6:reading",
		`{"measured_rate":60,"ordered_rate":60,"remaining_volume":10,"weight_kg":5}`))

	reading, err := cache.GetBedReading(context.Background(), 6)
	require.NoError(t, err)
	require.NotNil(t, reading)
	assert.Equal(t, models.DefaultDropFactor, reading.DropFactor)

	candidates := evaluator.NewEvaluator(nil, zap.NewNop()).Evaluate(*reading, models.DefaultThresholds())
	require.Len(t, candidates, 2)
	assert.Equal(t, models.CategoryTimeRemaining, candidates[0].Category)
	assert.Equal(t, models.SeverityCritical, candidates[0].Severity)
	assert.Equal(t, models.CategoryAdultSafety, candidates[1].Category)
	assert.Equal(t, models.SeverityCritical, candidates[1].Severity)
}

func TestReadingCache_GetBedReading_NotFound(t *testing.T) {
	_, client, cfg := setupTestRedis(t)
	cache := NewReadingCache(cfg, client, zap.NewNop())

	reading, err := cache.GetBedReading(context.Background(), 7)

	assert.NoError(t, err)
	assert.Nil(t, reading)
}

func TestReadingCache_GetBedReading_InvalidJSON(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewReadingCache(cfg, client, zap.NewNop())
	require.NoError(t, mr.Set("iv:bed:1:reading", "not-json"))

	_, err := cache.GetBedReading(context.Background(), 1)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal bed reading")
}

func TestReadingCache_GetBedReading_RedisDown(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewReadingCache(cfg, client, zap.NewNop())
	mr.Close()

	_, err := cache.GetBedReading(context.Background(), 1)
	assert.Error(t, err)
}

func TestReadingCache_PutAndDelete(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewReadingCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	reading := models.BedReading{BedID: 3, PatientID: "P-003", OrderedRate: 30, MeasuredRate: 30, RemainingVolume: 250, DropFactor: 20}
	require.NoError(t, cache.PutBedReading(ctx, reading, time.Minute))
	assert.True(t, mr.Exists("iv:bed:3:reading"))
	assert.Equal(t, time.Minute, mr.TTL("iv:bed:3:reading"))

	got, err := cache.GetBedReading(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, reading.RemainingVolume, got.RemainingVolume)

	require.NoError(t, cache.DeleteBedReading(ctx, 3))
	got, err = cache.GetBedReading(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testRecord(id string, bedID int, at time.Time) models.AlertRecord {
	return models.AlertRecord{
		ID: id,
		AlertCandidate: models.AlertCandidate{
			BedID:    bedID,
			Category: models.CategoryFlowRate,
			Severity: models.SeverityCritical,
			Message:  "Flow too low (3 drops/min) - check line immediately",
		},
		GeneratedAt: at,
		State:       models.AckState{Status: models.AckPending},
	}
}

func TestAlertCache_SaveUpdateAndRead(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewAlertCache(cfg, client, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, cache.SaveRecord(ctx, testRecord("r2", 1, now.Add(time.Minute))))
	require.NoError(t, cache.SaveRecord(ctx, testRecord("r1", 1, now)))
	assert.Equal(t, time.Hour, mr.TTL("iv:bed:1:alerts"))

	acked := testRecord("r1", 1, now)
	acked.State = models.AckState{Status: models.AckAcknowledged}
	require.NoError(t, cache.UpdateRecordState(ctx, acked))

	records, err := cache.GetBedAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r1", records[0].ID)
	assert.Equal(t, models.AckAcknowledged, records[0].State.Status)
	assert.Equal(t, "r2", records[1].ID)
}

func TestAlertCache_SkipsCorruptEntries(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewAlertCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.SaveRecord(ctx, testRecord("r1", 4, time.Now())))
	mr.HSet("iv:bed:4:alerts", "broken", "{")

	records, err := cache.GetBedAlerts(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAlertCache_RemoveRecords(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewAlertCache(cfg, client, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, cache.SaveRecord(ctx, testRecord(id, 2, now)))
	}
	require.NoError(t, cache.RemoveRecords(ctx, 2, []string{"r1", "r2"}))
	require.NoError(t, cache.RemoveRecords(ctx, 2, nil))

	keys, err := mr.HKeys("iv:bed:2:alerts")
	require.NoError(t, err)
	assert.Equal(t, []string{"r3"}, keys)
	records, err := cache.GetBedAlerts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r3", records[0].ID)
}

func TestAlertCache_ClearBed(t *testing.T) {
	mr, client, cfg := setupTestRedis(t)
	cache := NewAlertCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.SaveRecord(ctx, testRecord("r1", 5, time.Now())))
	require.NoError(t, cache.ClearBed(ctx, 5))

	assert.False(t, mr.Exists("iv:bed:5:alerts"))
	records, err := cache.GetBedAlerts(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}
