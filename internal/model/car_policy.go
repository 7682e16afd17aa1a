package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CarPolicy is the access and billing rule set attached to a plate.
type CarPolicy struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Plate       string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"number_plate"`
	Free        bool      `gorm:"not null;default:false" json:"is_free"`
	SpecialTaxi bool      `gorm:"not null;default:false" json:"is_special_taxi"`
	Blocked     bool      `gorm:"not null;default:false" json:"is_blocked"`
	Position    *string   `gorm:"type:varchar(255)" json:"position"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CarPolicy) TableName() string {
	return "car_policies"
}

func (p *CarPolicy) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Kind names the rule that applies to the plate. Blocked wins over free,
// free wins over special taxi.
func (p *CarPolicy) Kind() string {
	switch {
	case p.Blocked:
		return "blocked"
	case p.Free:
		return "free"
	case p.SpecialTaxi:
		return "special_taxi"
	default:
		return "normal"
	}
}
