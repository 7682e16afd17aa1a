package broadcast

import (
	"time"

	"github.com/google/uuid"

	"parking-service/internal/model"
)

const (
	TypeModelUpdate  = "model_update"
	TypeNotification = "notification"
	TypeCarUpdate    = "car_update"
)

// ModelUpdate carries the recomputed dashboard state for today after a
// session mutation.
type ModelUpdate struct {
	Type       string                   `json:"type"`
	Action     string                   `json:"action"`
	SessionID  uuid.UUID                `json:"entry_id"`
	Plate      string                   `json:"number_plate"`
	Statistics model.StatisticsSnapshot `json:"statistics"`
	Entries    []model.SessionView      `json:"vehicle_entries"`
	Timestamp  time.Time                `json:"timestamp"`
}

type NotificationMessage struct {
	Type             string    `json:"type"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	NotificationType string    `json:"notification_type"`
	Plate            string    `json:"number_plate,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

type CarUpdate struct {
	Type   string          `json:"type"`
	Action string          `json:"action"`
	Car    model.CarPolicy `json:"car"`
}
