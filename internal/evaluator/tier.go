package evaluator

import (
	"strconv"

	"wisefido-iv/internal/models"
)

// tier 同一类别内的一个级别；按顺序匹配，第一个命中的级别生效
type tier struct {
	key       RuleKey
	severity  models.Severity
	hit       bool
	threshold float64
	message   string
}

func firstMatch(tiers ...tier) *tier {
	for i := range tiers {
		if tiers[i].hit {
			return &tiers[i]
		}
	}
	return nil
}

func (e *Evaluator) candidate(bedID int, category models.Category, value float64, t *tier) *models.AlertCandidate {
	return &models.AlertCandidate{
		BedID:     bedID,
		Category:  category,
		Severity:  t.severity,
		Message:   t.message,
		Actions:   e.catalogue.Actions(t.key),
		Value:     value,
		Threshold: t.threshold,
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
