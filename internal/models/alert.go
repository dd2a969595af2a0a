package models

import (
	"fmt"
	"time"
)

// Category 报警类别
type Category string

const (
	CategoryFlowRate        Category = "flow_rate"
	CategoryFlowVariance    Category = "flow_variance"
	CategoryTimeRemaining   Category = "time_remaining"
	CategoryPediatricSafety Category = "pediatric_safety"
	CategoryAdultSafety     Category = "adult_safety"
)

// Severity 报警级别
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertCandidate 单次评估产生的候选报警（不持久化）
type AlertCandidate struct {
	BedID     int      `json:"bed_id"`
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Actions   []string `json:"actions"`
	Value     float64  `json:"value"`     // 触发值（单位随类别）
	Threshold float64  `json:"threshold"` // 越过的阈值
}

// AckStatus 确认状态
type AckStatus string

const (
	AckPending      AckStatus = "pending"
	AckAcknowledged AckStatus = "acknowledged"
	AckSnoozed      AckStatus = "snoozed"
)

// AckState 确认状态（snoozed 时带截止时间）
type AckState struct {
	Status       AckStatus  `json:"status"`
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
}

// String 形如 pending / acknowledged / snoozed-until:<RFC3339>
func (s AckState) String() string {
	if s.Status == AckSnoozed && s.SnoozedUntil != nil {
		return fmt.Sprintf("snoozed-until:%s", s.SnoozedUntil.UTC().Format(time.RFC3339))
	}
	return string(s.Status)
}

// Channel 投递通道
type Channel string

const (
	ChannelBlocking  Channel = "blocking"
	ChannelTransient Channel = "transient"
	ChannelSound     Channel = "sound"
	ChannelHistory   Channel = "history"
)

// AlertRecord 报警记录（由 Dispatcher 持有）
type AlertRecord struct {
	ID string `json:"id"`
	AlertCandidate
	GeneratedAt time.Time `json:"generated_at"`
	State       AckState  `json:"state"`
	Delivery    []Channel `json:"delivery"`
}

// IsCritical 是否为 critical 级别
func (r *AlertRecord) IsCritical() bool {
	return r.Severity == SeverityCritical
}

// Delivered 是否已通过指定通道投递
func (r *AlertRecord) Delivered(ch Channel) bool {
	for _, c := range r.Delivery {
		if c == ch {
			return true
		}
	}
	return false
}
