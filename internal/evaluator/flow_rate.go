package evaluator

import (
	"fmt"

	"wisefido-iv/internal/models"
)

// FlowRateRule 滴速上下限
type FlowRateRule struct {
	evaluator *Evaluator
}

// NewFlowRateRule 创建滴速上下限规则
func NewFlowRateRule(evaluator *Evaluator) *FlowRateRule {
	return &FlowRateRule{evaluator: evaluator}
}

// Evaluate 实测滴速低于下限或高于上限 → critical
func (r *FlowRateRule) Evaluate(reading *models.BedReading, t models.SafetyThresholds) *models.AlertCandidate {
	measured := reading.MeasuredRate
	match := firstMatch(
		tier{
			key:       KeyFlowRateLow,
			severity:  models.SeverityCritical,
			hit:       measured < t.FlowRate.Min,
			threshold: t.FlowRate.Min,
			message:   fmt.Sprintf("Flow too low (%s drops/min) - check line immediately", formatNumber(measured)),
		},
		tier{
			key:       KeyFlowRateHigh,
			severity:  models.SeverityCritical,
			hit:       measured > t.FlowRate.Max,
			threshold: t.FlowRate.Max,
			message:   fmt.Sprintf("Flow too high (%s drops/min) - danger!", formatNumber(measured)),
		},
	)
	if match == nil {
		return nil
	}
	return r.evaluator.candidate(reading.BedID, models.CategoryFlowRate, measured, match)
}
