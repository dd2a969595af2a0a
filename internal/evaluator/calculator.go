package evaluator

import (
	"time"

	"wisefido-iv/internal/converter"
	"wisefido-iv/internal/models"
)

// CalculationInput 床旁计算输入（滴速与流量二选一，缺失的一项由另一项推算）
type CalculationInput struct {
	BedID          int      `json:"bed_id,omitempty"`
	DropsPerMinute float64  `json:"drops_per_minute,omitempty"`
	VolumePerHour  float64  `json:"volume_per_hour,omitempty"`
	TotalVolume    float64  `json:"total_volume,omitempty"`
	DropFactor     int      `json:"drop_factor,omitempty"`
	WeightKg       *float64 `json:"weight_kg,omitempty"`
	AgeYears       *float64 `json:"age_years,omitempty"`
}

// CalculationResult 计算结果
type CalculationResult struct {
	DropFactor               int                     `json:"drop_factor"`
	OriginalDropsPerMinute   float64                 `json:"original_drops_per_minute"`
	OriginalVolumePerHour    float64                 `json:"original_volume_per_hour"`
	TotalVolume              float64                 `json:"total_volume"`
	CalculatedVolumePerHour  *float64                `json:"calculated_volume_per_hour,omitempty"`
	CalculatedDropsPerMinute *float64                `json:"calculated_drops_per_minute,omitempty"`
	QuickDropsPerMinute      *float64                `json:"quick_drops_per_minute,omitempty"`
	TimeToFinishHours        float64                 `json:"time_to_finish_hours,omitempty"`
	TimeToFinishFormatted    string                  `json:"time_to_finish_formatted,omitempty"`
	EstimatedFinishAt        *time.Time              `json:"estimated_finish_at,omitempty"`
	Alerts                   []models.AlertCandidate `json:"alerts,omitempty"`
}

// Reading 由计算输入构造床位读数（医嘱滴速取输入滴速，实测滴速取输入或推算值）
func (r *CalculationResult) Reading(in CalculationInput) models.BedReading {
	measured := r.OriginalDropsPerMinute
	if measured == 0 && r.CalculatedDropsPerMinute != nil {
		measured = *r.CalculatedDropsPerMinute
	}
	return models.BedReading{
		BedID:           in.BedID,
		OrderedRate:     r.OriginalDropsPerMinute,
		MeasuredRate:    measured,
		RemainingVolume: r.TotalVolume,
		DropFactor:      r.DropFactor,
		WeightKg:        in.WeightKg,
		AgeYears:        in.AgeYears,
	}
}

// Calculate 床旁计算；带 bed_id 时同时评估报警（不投递）
func (e *Evaluator) Calculate(in CalculationInput, thresholds models.SafetyThresholds, now time.Time) CalculationResult {
	dropFactor := in.DropFactor
	if dropFactor <= 0 {
		dropFactor = models.DefaultDropFactor
	}

	result := CalculationResult{
		DropFactor:             dropFactor,
		OriginalDropsPerMinute: nonNegative(in.DropsPerMinute),
		OriginalVolumePerHour:  nonNegative(in.VolumePerHour),
		TotalVolume:            nonNegative(in.TotalVolume),
	}

	switch {
	case result.OriginalDropsPerMinute > 0 && result.OriginalVolumePerHour == 0:
		v := converter.DropsPerMinuteToVolumePerHour(result.OriginalDropsPerMinute, float64(dropFactor))
		result.CalculatedVolumePerHour = &v
	case result.OriginalVolumePerHour > 0 && result.OriginalDropsPerMinute == 0:
		d := converter.VolumePerHourToDropsPerMinute(result.OriginalVolumePerHour, float64(dropFactor))
		q := converter.QuickDropEstimate(result.OriginalVolumePerHour, dropFactor)
		result.CalculatedDropsPerMinute = &d
		result.QuickDropsPerMinute = &q
	}

	finalVolumePerHour := result.OriginalVolumePerHour
	if result.CalculatedVolumePerHour != nil {
		finalVolumePerHour = *result.CalculatedVolumePerHour
	}
	if hours := converter.TimeToEmptyHours(result.TotalVolume, finalVolumePerHour); hours > 0 {
		finish := converter.EstimatedFinish(now, hours)
		result.TimeToFinishHours = hours
		result.TimeToFinishFormatted = converter.FormatDuration(hours)
		result.EstimatedFinishAt = &finish
	}

	if in.BedID > 0 {
		result.Alerts = e.Evaluate(result.Reading(in), thresholds)
	}

	return result
}

func nonNegative(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}
