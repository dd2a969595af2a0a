package models

import (
	"errors"
	"fmt"
)

// SafetyThresholds 安全阈值配置
type SafetyThresholds struct {
	FlowRate struct {
		Min float64 `json:"min" mapstructure:"min"` // drops/min
		Max float64 `json:"max" mapstructure:"max"`
	} `json:"flow_rate" mapstructure:"flow_rate"`

	FlowVariancePercent float64 `json:"flow_variance_percent" mapstructure:"flow_variance_percent"`

	TimeRemaining struct {
		CriticalMinutes float64 `json:"critical_minutes" mapstructure:"critical_minutes"`
		WarningMinutes  float64 `json:"warning_minutes" mapstructure:"warning_minutes"`
	} `json:"time_remaining" mapstructure:"time_remaining"`

	Pediatric struct {
		AgeLimit         float64 `json:"age_limit" mapstructure:"age_limit"`
		CriticalMlPerKgH float64 `json:"critical_ml_per_kg_h" mapstructure:"critical_ml_per_kg_h"`
	} `json:"pediatric" mapstructure:"pediatric"`

	Adult struct {
		CriticalMlPerKgH float64 `json:"critical_ml_per_kg_h" mapstructure:"critical_ml_per_kg_h"`
		WarningMlPerKgH  float64 `json:"warning_ml_per_kg_h" mapstructure:"warning_ml_per_kg_h"`
	} `json:"adult" mapstructure:"adult"`
}

// DefaultThresholds 默认阈值
func DefaultThresholds() SafetyThresholds {
	var t SafetyThresholds
	t.FlowRate.Min = 5
	t.FlowRate.Max = 200
	t.FlowVariancePercent = 50
	t.TimeRemaining.CriticalMinutes = 30
	t.TimeRemaining.WarningMinutes = 60
	t.Pediatric.AgeLimit = 18
	t.Pediatric.CriticalMlPerKgH = 8
	t.Adult.CriticalMlPerKgH = 15
	t.Adult.WarningMlPerKgH = 10
	return t
}

// ErrInvalidThresholds 阈值配置非法
var ErrInvalidThresholds = errors.New("invalid safety thresholds")

// Validate 校验阈值（负数、上下限颠倒、warning/critical 颠倒均拒绝）
func (t SafetyThresholds) Validate() error {
	values := map[string]float64{
		"flow_rate.min":                   t.FlowRate.Min,
		"flow_rate.max":                   t.FlowRate.Max,
		"flow_variance_percent":           t.FlowVariancePercent,
		"time_remaining.critical_minutes": t.TimeRemaining.CriticalMinutes,
		"time_remaining.warning_minutes":  t.TimeRemaining.WarningMinutes,
		"pediatric.age_limit":             t.Pediatric.AgeLimit,
		"pediatric.critical_ml_per_kg_h":  t.Pediatric.CriticalMlPerKgH,
		"adult.critical_ml_per_kg_h":      t.Adult.CriticalMlPerKgH,
		"adult.warning_ml_per_kg_h":       t.Adult.WarningMlPerKgH,
	}
	for name, v := range values {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidThresholds, name)
		}
	}
	if t.FlowRate.Max < t.FlowRate.Min {
		return fmt.Errorf("%w: flow_rate.max below flow_rate.min", ErrInvalidThresholds)
	}
	if t.TimeRemaining.WarningMinutes < t.TimeRemaining.CriticalMinutes {
		return fmt.Errorf("%w: time_remaining.warning_minutes below critical_minutes", ErrInvalidThresholds)
	}
	if t.Adult.WarningMlPerKgH > t.Adult.CriticalMlPerKgH {
		return fmt.Errorf("%w: adult.warning_ml_per_kg_h above critical", ErrInvalidThresholds)
	}
	return nil
}
