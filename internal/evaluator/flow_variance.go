package evaluator

import (
	"fmt"
	"math"

	"wisefido-iv/internal/models"
)

// FlowVarianceRule 实测滴速与医嘱滴速偏差
type FlowVarianceRule struct {
	evaluator *Evaluator
}

// NewFlowVarianceRule 创建滴速偏差规则
func NewFlowVarianceRule(evaluator *Evaluator) *FlowVarianceRule {
	return &FlowVarianceRule{evaluator: evaluator}
}

// Evaluate 偏差百分比 > 阈值 → warning；医嘱滴速为 0 时比值无意义，跳过
func (r *FlowVarianceRule) Evaluate(reading *models.BedReading, t models.SafetyThresholds) *models.AlertCandidate {
	ordered := reading.OrderedRate
	if ordered <= 0 {
		return nil
	}
	variance := math.Abs(reading.MeasuredRate-ordered) / ordered * 100

	match := firstMatch(tier{
		key:       KeyFlowVarianceWarning,
		severity:  models.SeverityWarning,
		hit:       variance > t.FlowVariancePercent,
		threshold: t.FlowVariancePercent,
		message: fmt.Sprintf("Abnormal flow: ordered %s drops/min but measured %s drops/min (%.0f%% off)",
			formatNumber(ordered), formatNumber(reading.MeasuredRate), variance),
	})
	if match == nil {
		return nil
	}
	return r.evaluator.candidate(reading.BedID, models.CategoryFlowVariance, variance, match)
}
