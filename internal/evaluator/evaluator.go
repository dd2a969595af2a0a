// Package evaluator 输液规则评估：由床位读数和安全阈值生成候选报警
package evaluator

import (
	"wisefido-iv/internal/models"

	"go.uber.org/zap"
)

// Rule 单个规则组；每次评估最多返回一个候选报警（最严重的级别）
type Rule interface {
	Evaluate(reading *models.BedReading, t models.SafetyThresholds) *models.AlertCandidate
}

// Evaluator 规则评估器（无状态，可并发调用）
type Evaluator struct {
	catalogue Catalogue
	logger    *zap.Logger

	flowRate      *FlowRateRule      // 滴速上下限
	flowVariance  *FlowVarianceRule  // 滴速偏差
	timeRemaining *TimeRemainingRule // 剩余时间
	weightSafety  *WeightSafetyRule  // 体重安全
}

// NewEvaluator 创建评估器；catalogue 为 nil 时使用默认处置措施
func NewEvaluator(catalogue Catalogue, logger *zap.Logger) *Evaluator {
	if catalogue == nil {
		catalogue = DefaultCatalogue()
	}
	e := &Evaluator{
		catalogue: catalogue,
		logger:    logger,
	}

	e.flowRate = NewFlowRateRule(e)
	e.flowVariance = NewFlowVarianceRule(e)
	e.timeRemaining = NewTimeRemainingRule(e)
	e.weightSafety = NewWeightSafetyRule(e)

	return e
}

// Evaluate 评估床位读数，返回候选报警列表（顺序固定：滴速、偏差、剩余时间、体重安全）
func (e *Evaluator) Evaluate(reading models.BedReading, thresholds models.SafetyThresholds) []models.AlertCandidate {
	var candidates []models.AlertCandidate
	reading.ApplyDefaults()

	for _, rule := range []Rule{e.flowRate, e.flowVariance, e.timeRemaining, e.weightSafety} {
		if c := rule.Evaluate(&reading, thresholds); c != nil {
			candidates = append(candidates, *c)
		}
	}

	if len(candidates) > 0 {
		e.logger.Debug("IV rules fired",
			zap.Int("bed_id", reading.BedID),
			zap.Int("candidate_count", len(candidates)),
		)
	}

	return candidates
}
