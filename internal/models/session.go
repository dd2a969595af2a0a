package models

import "time"

// MonitoringSession 床位监测会话快照
type MonitoringSession struct {
	BedID           int         `json:"bed_id"`
	StartedAt       time.Time   `json:"started_at"`
	LastReading     *BedReading `json:"last_reading,omitempty"`
	LastEvaluatedAt *time.Time  `json:"last_evaluated_at,omitempty"`
	TickCount       int64       `json:"tick_count"`
}
