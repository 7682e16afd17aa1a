package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionStatusAll    SessionStatus = "all"
	SessionStatusInside SessionStatus = "inside"
	SessionStatusPaid   SessionStatus = "paid"
	SessionStatusUnpaid SessionStatus = "unpaid"
	SessionStatusExited SessionStatus = "exited"
)

// ParseSessionStatus maps a dashboard filter value to a status. Empty and
// unknown values mean "all".
func ParseSessionStatus(raw string) SessionStatus {
	switch SessionStatus(raw) {
	case SessionStatusInside, SessionStatusPaid, SessionStatusUnpaid, SessionStatusExited:
		return SessionStatus(raw)
	default:
		return SessionStatusAll
	}
}

// VehicleSession is one entry-to-exit stay of a plate in the facility.
type VehicleSession struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Plate         string     `gorm:"type:varchar(32);not null;index" json:"number_plate"`
	EntryTime     time.Time  `gorm:"not null;index" json:"entry_time"`
	ExitTime      *time.Time `json:"exit_time"`
	EntryImageRef string     `gorm:"type:text;not null" json:"entry_image"`
	ExitImageRef  *string    `gorm:"type:text" json:"exit_image"`
	Amount        *int64     `json:"total_amount"`
	Paid          bool       `gorm:"not null;default:false" json:"is_paid"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (VehicleSession) TableName() string {
	return "vehicle_sessions"
}

func (s *VehicleSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *VehicleSession) IsOpen() bool {
	return s.ExitTime == nil
}

// Status derives the dashboard status of the session.
func (s *VehicleSession) Status() SessionStatus {
	switch {
	case s.ExitTime == nil:
		return SessionStatusInside
	case s.Paid:
		return SessionStatusPaid
	default:
		return SessionStatusUnpaid
	}
}

// Matches reports whether the session passes a dashboard status filter.
func (s *VehicleSession) Matches(status SessionStatus) bool {
	switch status {
	case SessionStatusPaid:
		return s.Paid
	case SessionStatusUnpaid:
		return !s.Paid && s.ExitTime != nil
	case SessionStatusInside:
		return s.ExitTime == nil
	case SessionStatusExited:
		return s.ExitTime != nil
	default:
		return true
	}
}

// DurationHours is zero for open sessions.
func (s *VehicleSession) DurationHours() float64 {
	if s.ExitTime == nil {
		return 0
	}
	return s.ExitTime.Sub(s.EntryTime).Hours()
}

// StatisticsSnapshot is derived from the sessions entered on one day.
type StatisticsSnapshot struct {
	TotalEntries int `json:"total_entries"`
	TotalExits   int `json:"total_exits"`
	TotalInside  int `json:"total_inside"`
	UnpaidCount  int `json:"unpaid_entries"`
}

type Receipt struct {
	SessionID     uuid.UUID  `json:"id"`
	Plate         string     `json:"number_plate"`
	EntryTime     time.Time  `json:"entry_time"`
	ExitTime      *time.Time `json:"exit_time"`
	Amount        int64      `json:"total_amount"`
	Paid          bool       `json:"is_paid"`
	DurationHours float64    `json:"duration_hours"`
}

// SessionView is the dashboard row of a session.
type SessionView struct {
	ID         uuid.UUID     `json:"id"`
	Plate      string        `json:"number_plate"`
	EntryTime  time.Time     `json:"entry_time"`
	ExitTime   *time.Time    `json:"exit_time"`
	Amount     int64         `json:"total_amount"`
	Paid       bool          `json:"is_paid"`
	EntryImage string        `json:"entry_image"`
	ExitImage  *string       `json:"exit_image"`
	Status     SessionStatus `json:"status"`
}

func (s *VehicleSession) View() SessionView {
	var amount int64
	if s.Amount != nil {
		amount = *s.Amount
	}
	return SessionView{
		ID:         s.ID,
		Plate:      s.Plate,
		EntryTime:  s.EntryTime,
		ExitTime:   s.ExitTime,
		Amount:     amount,
		Paid:       s.Paid,
		EntryImage: s.EntryImageRef,
		ExitImage:  s.ExitImageRef,
		Status:     s.Status(),
	}
}

func SessionViews(sessions []VehicleSession) []SessionView {
	views := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, sessions[i].View())
	}
	return views
}
