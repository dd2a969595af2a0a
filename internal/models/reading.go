package models

import "time"

// 常用输液器滴系数（drops/mL）
const (
	DropFactor10 = 10
	DropFactor15 = 15
	DropFactor20 = 20
	DropFactor60 = 60

	// DefaultDropFactor 未指定滴系数时的默认值
	DefaultDropFactor = DropFactor20
)

// BedReading 某一时刻床位的输液状态快照（只读值对象）
type BedReading struct {
	BedID           int       `json:"bed_id"`
	PatientID       string    `json:"patient_id,omitempty"`
	OrderedRate     float64   `json:"ordered_rate"`     // 医嘱滴速（drops/min）
	MeasuredRate    float64   `json:"measured_rate"`    // 实测滴速（drops/min）
	RemainingVolume float64   `json:"remaining_volume"` // 剩余液量（mL）
	DropFactor      int       `json:"drop_factor"`      // 滴系数（drops/mL）
	WeightKg        *float64  `json:"weight_kg,omitempty"`
	AgeYears        *float64  `json:"age_years,omitempty"`
	SampledAt       time.Time `json:"sampled_at"`
}

// ApplyDefaults 补齐缺省字段：滴系数未设置（<= 0）时取 DefaultDropFactor
func (r *BedReading) ApplyDefaults() {
	if r.DropFactor <= 0 {
		r.DropFactor = DefaultDropFactor
	}
}

// HasWeight 是否有有效体重
func (r *BedReading) HasWeight() bool {
	return r.WeightKg != nil && *r.WeightKg > 0
}

// IsPediatric 年龄已知且小于 limit 时视为儿科患者；年龄缺失按成人处理
func (r *BedReading) IsPediatric(limit float64) bool {
	return r.AgeYears != nil && *r.AgeYears < limit
}

// Occupied 床位是否有患者（巡检只覆盖有患者的床位）
func (r *BedReading) Occupied() bool {
	return r.PatientID != ""
}
