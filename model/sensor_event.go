package model

import (
	"time"

	"gorm.io/datatypes"
)

// SensorEvent is one flushed sensor event persisted by the journal.
type SensorEvent struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string         `gorm:"uniqueIndex:idx_sensor_event_uid;size:36;not null" json:"event_id"`
	SensorID   string         `gorm:"index:idx_sensor_event_sensor;size:36;not null" json:"sensor_id"`
	Kind       string         `gorm:"index:idx_sensor_event_kind;size:32;not null" json:"kind"`
	Subject    int64          `json:"subject"`
	Payload    datatypes.JSON `json:"payload"`
	SensorTime time.Time      `gorm:"index:idx_sensor_event_time" json:"sensor_time"` // sensor clock, not wall time
	CreatedAt  time.Time      `gorm:"autoCreateTime:milli" json:"created_at"`
}
