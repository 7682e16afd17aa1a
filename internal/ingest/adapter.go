package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"parking-service/internal/model"
	"parking-service/internal/service"
	"parking-service/internal/utils"
)

const (
	OutcomeAccepted    = "accepted"
	OutcomeRejected    = "rejected"
	OutcomeDecodeError = "decode_error"
	OutcomeFailed      = "failed"
)

// EventLog keeps the audit trail of camera triggers.
type EventLog interface {
	Create(ctx context.Context, event *model.CameraEvent) error
}

type Sessions interface {
	OpenSession(ctx context.Context, plate, entryImageRef string, now time.Time) (*model.VehicleSession, error)
	CloseSession(ctx context.Context, plate, exitImageRef string, now time.Time) (*model.VehicleSession, error)
}

// Adapter turns camera requests into session operations.
type Adapter struct {
	decoder  *Decoder
	sessions Sessions
	events   EventLog
	now      func() time.Time
	log      zerolog.Logger
}

func NewAdapter(decoder *Decoder, sessions Sessions, events EventLog, log zerolog.Logger) *Adapter {
	return &Adapter{
		decoder:  decoder,
		sessions: sessions,
		events:   events,
		now:      time.Now,
		log:      log,
	}
}

type Result struct {
	Plate   string
	Session *model.VehicleSession
}

// MaxUploadBytes caps the size of a camera request body.
func (a *Adapter) MaxUploadBytes() int64 {
	return a.decoder.MaxUploadBytes()
}

// Handle stamps sessions with the server clock. The camera's own event time
// is kept in the audit record only. Snapshots of rejected triggers stay in
// the image store; their audit record points at them.
func (a *Adapter) Handle(ctx context.Context, capture Capture) (*Result, error) {
	trigger, err := a.decoder.Decode(ctx, capture)
	if err != nil {
		a.record(ctx, trigger, nil, err)
		if errors.Is(err, service.ErrDecode) {
			a.log.Warn().Err(err).Str("direction", string(capture.Direction)).Msg("camera event rejected")
		}
		return nil, err
	}

	now := a.now()
	var session *model.VehicleSession
	switch capture.Direction {
	case model.CameraDirectionEntry:
		session, err = a.sessions.OpenSession(ctx, trigger.Plate, trigger.ImageRef, now)
	default:
		session, err = a.sessions.CloseSession(ctx, trigger.Plate, trigger.ImageRef, now)
	}
	a.record(ctx, trigger, session, err)
	if err != nil {
		return nil, err
	}

	return &Result{Plate: session.Plate, Session: session}, nil
}

// RejectMalformed records a request body that could not be bound and returns
// it as a decode error.
func (a *Adapter) RejectMalformed(ctx context.Context, direction model.CameraDirection, cause error) error {
	err := fmt.Errorf("%w: %v", service.ErrDecode, cause)
	a.record(ctx, &Trigger{Direction: direction, EventTime: a.now().UTC()}, nil, err)
	a.log.Warn().Err(err).Str("direction", string(direction)).Msg("camera event rejected")
	return err
}

func (a *Adapter) record(ctx context.Context, trigger *Trigger, session *model.VehicleSession, cause error) {
	if a.events == nil || trigger == nil {
		return
	}

	event := &model.CameraEvent{
		Direction:  trigger.Direction,
		CameraID:   trigger.CameraID,
		RawPlate:   trigger.Plate,
		Plate:      utils.NormalizePlate(trigger.Plate),
		EventTime:  trigger.EventTime,
		Outcome:    outcome(cause),
		RawPayload: datatypes.JSONMap(trigger.Raw),
	}
	if trigger.ImageRef != "" {
		ref := trigger.ImageRef
		event.ImageRef = &ref
	}
	if cause != nil {
		reason := service.Reason(cause)
		event.Reason = &reason
	}
	if session != nil {
		id := session.ID
		event.SessionID = &id
	}

	if err := a.events.Create(context.WithoutCancel(ctx), event); err != nil {
		a.log.Error().Err(err).Str("plate", event.Plate).Msg("failed to record camera event")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeAccepted
	case errors.Is(err, service.ErrDecode):
		return OutcomeDecodeError
	case errors.Is(err, service.ErrPolicyRejected),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrInvalidInput):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
