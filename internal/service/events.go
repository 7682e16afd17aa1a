package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"parking-service/internal/model"
)

type SessionAction string

const (
	ActionSessionOpened   SessionAction = "session_opened"
	ActionSessionClosed   SessionAction = "session_closed"
	ActionPaymentRecorded SessionAction = "payment_recorded"
	ActionSessionDeleted  SessionAction = "session_deleted"
)

type PolicyAction string

const (
	ActionPolicyCreated PolicyAction = "created"
	ActionPolicyUpdated PolicyAction = "updated"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// SessionEvent describes a committed session mutation.
type SessionEvent struct {
	Action     SessionAction
	SessionID  uuid.UUID
	Plate      string
	OccurredAt time.Time
}

type PolicyEvent struct {
	Action PolicyAction
	Policy model.CarPolicy
}

type Notification struct {
	Title     string
	Message   string
	Severity  Severity
	Plate     string
	Timestamp time.Time
}

// EventPublisher receives committed changes. Implementations must not block
// the caller for long and never report failures back.
type EventPublisher interface {
	SessionChanged(ctx context.Context, event SessionEvent)
	PolicyChanged(ctx context.Context, event PolicyEvent)
	Notify(ctx context.Context, notification Notification)
}

type nopPublisher struct{}

func (nopPublisher) SessionChanged(context.Context, SessionEvent) {}
func (nopPublisher) PolicyChanged(context.Context, PolicyEvent)   {}
func (nopPublisher) Notify(context.Context, Notification)         {}
