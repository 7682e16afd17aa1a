package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/model"
	"parking-service/internal/service"
)

// Broadcaster turns committed changes into dashboard messages and publishes
// them on the bus. Failures are logged and never returned.
type Broadcaster struct {
	bus     Bus
	reports *service.Reports
	now     func() time.Time
	log     zerolog.Logger
}

func NewBroadcaster(bus Bus, reports *service.Reports, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		bus:     bus,
		reports: reports,
		now:     time.Now,
		log:     log,
	}
}

// WithClock replaces the clock used to decide which day is "today".
func (b *Broadcaster) WithClock(now func() time.Time) *Broadcaster {
	b.now = now
	return b
}

func (b *Broadcaster) SessionChanged(ctx context.Context, event service.SessionEvent) {
	today := b.now()

	stats, err := b.reports.StatisticsFor(ctx, today)
	if err != nil {
		b.logTransient(err, "failed to compute statistics for model update")
		return
	}
	entries, err := b.reports.SessionsFor(ctx, today, "", model.SessionStatusAll)
	if err != nil {
		b.logTransient(err, "failed to list sessions for model update")
		return
	}

	b.publish(ctx, ModelUpdate{
		Type:       TypeModelUpdate,
		Action:     string(event.Action),
		SessionID:  event.SessionID,
		Plate:      event.Plate,
		Statistics: stats,
		Entries:    model.SessionViews(entries),
		Timestamp:  event.OccurredAt,
	})
}

func (b *Broadcaster) PolicyChanged(ctx context.Context, event service.PolicyEvent) {
	b.publish(ctx, CarUpdate{
		Type:   TypeCarUpdate,
		Action: string(event.Action),
		Car:    event.Policy,
	})
}

func (b *Broadcaster) Notify(ctx context.Context, notification service.Notification) {
	timestamp := notification.Timestamp
	if timestamp.IsZero() {
		timestamp = b.now().UTC()
	}
	b.publish(ctx, NotificationMessage{
		Type:             TypeNotification,
		Title:            notification.Title,
		Message:          notification.Message,
		NotificationType: string(notification.Severity),
		Plate:            notification.Plate,
		Timestamp:        timestamp,
	})
}

func (b *Broadcaster) publish(ctx context.Context, msg interface{}) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logTransient(err, "failed to encode dashboard message")
		return
	}
	if err := b.bus.Publish(ctx, payload); err != nil {
		b.logTransient(err, "failed to publish dashboard message")
	}
}

func (b *Broadcaster) logTransient(err error, msg string) {
	b.log.Warn().Err(fmt.Errorf("%w: %v", service.ErrTransient, err)).Msg(msg)
}
