package evaluator

import (
	"fmt"
	"math"

	"wisefido-iv/internal/converter"
	"wisefido-iv/internal/models"
)

// TimeRemainingRule 剩余输液时间
type TimeRemainingRule struct {
	evaluator *Evaluator
}

// NewTimeRemainingRule 创建剩余时间规则
func NewTimeRemainingRule(evaluator *Evaluator) *TimeRemainingRule {
	return &TimeRemainingRule{evaluator: evaluator}
}

// Evaluate 剩余分钟 <= critical → critical；<= warning → warning
// 液量或流量不为正时不触发
func (r *TimeRemainingRule) Evaluate(reading *models.BedReading, t models.SafetyThresholds) *models.AlertCandidate {
	volumePerHour := converter.DropsPerMinuteToVolumePerHour(reading.MeasuredRate, float64(reading.DropFactor))
	if reading.RemainingVolume <= 0 || volumePerHour <= 0 {
		return nil
	}
	minutes := converter.TimeToEmptyHours(reading.RemainingVolume, volumePerHour) * 60
	rounded := int64(math.Round(minutes))

	match := firstMatch(
		tier{
			key:       KeyTimeRemainingCritical,
			severity:  models.SeverityCritical,
			hit:       minutes <= t.TimeRemaining.CriticalMinutes,
			threshold: t.TimeRemaining.CriticalMinutes,
			message:   fmt.Sprintf("IV bag empties in %d min - replace now!", rounded),
		},
		tier{
			key:       KeyTimeRemainingWarning,
			severity:  models.SeverityWarning,
			hit:       minutes <= t.TimeRemaining.WarningMinutes,
			threshold: t.TimeRemaining.WarningMinutes,
			message:   fmt.Sprintf("IV bag empties in %d min - get ready", rounded),
		},
	)
	if match == nil {
		return nil
	}
	return r.evaluator.candidate(reading.BedID, models.CategoryTimeRemaining, minutes, match)
}
