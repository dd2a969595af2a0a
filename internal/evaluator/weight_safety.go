package evaluator

import (
	"fmt"

	"wisefido-iv/internal/converter"
	"wisefido-iv/internal/models"
)

// WeightSafetyRule 按体重计算的输液速率（mL/kg/hr）
type WeightSafetyRule struct {
	evaluator *Evaluator
}

// NewWeightSafetyRule 创建体重安全规则
func NewWeightSafetyRule(evaluator *Evaluator) *WeightSafetyRule {
	return &WeightSafetyRule{evaluator: evaluator}
}

// Evaluate 儿科（年龄已知且 < age_limit）：> critical → pediatric_safety critical
// 成人（含年龄未知）：> critical → critical，> warning → warning
// 无体重时跳过
func (r *WeightSafetyRule) Evaluate(reading *models.BedReading, t models.SafetyThresholds) *models.AlertCandidate {
	if !reading.HasWeight() {
		return nil
	}
	volumePerHour := converter.DropsPerMinuteToVolumePerHour(reading.MeasuredRate, float64(reading.DropFactor))
	mlPerKgPerHour := volumePerHour / *reading.WeightKg

	if reading.IsPediatric(t.Pediatric.AgeLimit) {
		match := firstMatch(tier{
			key:       KeyPediatricSafetyCritical,
			severity:  models.SeverityCritical,
			hit:       mlPerKgPerHour > t.Pediatric.CriticalMlPerKgH,
			threshold: t.Pediatric.CriticalMlPerKgH,
			message:   fmt.Sprintf("Pediatric: very high infusion rate %.1f mL/kg/hr - cardiac risk!", mlPerKgPerHour),
		})
		if match == nil {
			return nil
		}
		return r.evaluator.candidate(reading.BedID, models.CategoryPediatricSafety, mlPerKgPerHour, match)
	}

	match := firstMatch(
		tier{
			key:       KeyAdultSafetyCritical,
			severity:  models.SeverityCritical,
			hit:       mlPerKgPerHour > t.Adult.CriticalMlPerKgH,
			threshold: t.Adult.CriticalMlPerKgH,
			message:   fmt.Sprintf("Very high infusion rate %.1f mL/kg/hr - risk of fluid overload!", mlPerKgPerHour),
		},
		tier{
			key:       KeyAdultSafetyWarning,
			severity:  models.SeverityWarning,
			hit:       mlPerKgPerHour > t.Adult.WarningMlPerKgH,
			threshold: t.Adult.WarningMlPerKgH,
			message:   fmt.Sprintf("Fairly high infusion rate %.1f mL/kg/hr - monitor closely", mlPerKgPerHour),
		},
	)
	if match == nil {
		return nil
	}
	return r.evaluator.candidate(reading.BedID, models.CategoryAdultSafety, mlPerKgPerHour, match)
}
