package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CameraDirection string

const (
	CameraDirectionEntry CameraDirection = "entry"
	CameraDirectionExit  CameraDirection = "exit"
)

// CameraEvent is the audit record of a single camera trigger.
type CameraEvent struct {
	ID         uuid.UUID         `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Direction  CameraDirection   `gorm:"type:varchar(10);not null" json:"direction"`
	CameraID   *string           `gorm:"type:varchar(64)" json:"camera_id"`
	RawPlate   string            `gorm:"type:varchar(64)" json:"raw_plate"`
	Plate      string            `gorm:"type:varchar(32);index" json:"plate"`
	ImageRef   *string           `gorm:"type:text" json:"image_ref"`
	EventTime  time.Time         `gorm:"not null;index" json:"event_time"`
	Outcome    string            `gorm:"type:varchar(32);not null" json:"outcome"`
	Reason     *string           `gorm:"type:varchar(64)" json:"reason"`
	SessionID  *uuid.UUID        `gorm:"type:uuid" json:"session_id"`
	RawPayload datatypes.JSONMap `gorm:"type:jsonb" json:"raw_payload,omitempty"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (CameraEvent) TableName() string {
	return "camera_events"
}

func (e *CameraEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
