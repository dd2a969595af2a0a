package evaluator

import (
	"testing"
	"time"

	"wisefido-iv/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var calcNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func TestCalculate_FromDropsPerMinute(t *testing.T) {
	e := newTestEvaluator()

	result := e.Calculate(CalculationInput{DropsPerMinute: 40, TotalVolume: 1000}, models.DefaultThresholds(), calcNow)

	assert.Equal(t, models.DefaultDropFactor, result.DropFactor)
	require.NotNil(t, result.CalculatedVolumePerHour)
	assert.InDelta(t, 120.0, *result.CalculatedVolumePerHour, 1e-9)
	assert.Nil(t, result.CalculatedDropsPerMinute)
	assert.Nil(t, result.QuickDropsPerMinute)
	assert.InDelta(t, 1000.0/120.0, result.TimeToFinishHours, 1e-9)
	assert.Equal(t, "8 hr 20 min", result.TimeToFinishFormatted)
	require.NotNil(t, result.EstimatedFinishAt)
	assert.Equal(t, calcNow.Add(500*time.Minute), result.EstimatedFinishAt.Round(time.Second))
	assert.Empty(t, result.Alerts)
}

func TestCalculate_FromVolumePerHour(t *testing.T) {
	e := newTestEvaluator()

	result := e.Calculate(CalculationInput{VolumePerHour: 100, DropFactor: 10, TotalVolume: 50}, models.DefaultThresholds(), calcNow)

	require.NotNil(t, result.CalculatedDropsPerMinute)
	assert.InDelta(t, 16.667, *result.CalculatedDropsPerMinute, 1e-3)
	require.NotNil(t, result.QuickDropsPerMinute)
	assert.Equal(t, 17.0, *result.QuickDropsPerMinute)
	assert.Equal(t, "0 hr 30 min", result.TimeToFinishFormatted)
}

func TestCalculate_WithBedProducesAlerts(t *testing.T) {
	e := newTestEvaluator()
	weight, age := 10.0, 5.0

	result := e.Calculate(CalculationInput{
		BedID:         7,
		VolumePerHour: 100,
		DropFactor:    60,
		WeightKg:      &weight,
		AgeYears:      &age,
	}, models.DefaultThresholds(), calcNow)

	// 医嘱滴速未给出，偏差规则跳过；10 mL/kg/hr → 儿科 critical
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.CategoryPediatricSafety, result.Alerts[0].Category)
	assert.Equal(t, 7, result.Alerts[0].BedID)
	assert.Empty(t, result.TimeToFinishFormatted)
	assert.Nil(t, result.EstimatedFinishAt)
}

func TestCalculate_NoInputs(t *testing.T) {
	e := newTestEvaluator()

	result := e.Calculate(CalculationInput{BedID: 1}, models.DefaultThresholds(), calcNow)

	assert.Nil(t, result.CalculatedVolumePerHour)
	assert.Nil(t, result.CalculatedDropsPerMinute)
	assert.Zero(t, result.TimeToFinishHours)
	// 滴速为 0 低于下限
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.CategoryFlowRate, result.Alerts[0].Category)
}
