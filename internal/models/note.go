package models

import "time"

// Note 护理记录
type Note struct {
	ID        string    `json:"id"`
	BedID     int       `json:"bed_id"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}
