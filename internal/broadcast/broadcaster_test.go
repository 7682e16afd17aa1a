package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-service/internal/model"
	"parking-service/internal/repository"
	"parking-service/internal/service"
)

func TestBroadcasterModelUpdateFollowsMutations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	log := zerolog.Nop()

	bus := NewLocalBus()
	messages, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sessions := repository.NewMemorySessionRepository()
	reports := service.NewReports(sessions, time.UTC)
	broadcaster := NewBroadcaster(bus, reports, log).WithClock(func() time.Time { return now })
	resolver := service.NewPolicyResolver(repository.NewMemoryCarPolicyRepository(), broadcaster, log)
	manager := service.NewSessionManager(sessions, resolver, reports, broadcaster, service.BillingConfig{
		HourlyRate:           10000,
		MinRetriggerInterval: 30 * time.Second,
	}, log)

	opened, err := manager.OpenSession(ctx, "01A123BC", "entry.jpg", now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var update ModelUpdate
	decode(t, <-messages, &update)
	if update.Type != TypeModelUpdate || update.Action != string(service.ActionSessionOpened) {
		t.Fatalf("unexpected update %+v", update)
	}
	if update.SessionID != opened.ID || update.Statistics.TotalInside != 1 || len(update.Entries) != 1 {
		t.Fatalf("unexpected update payload %+v", update)
	}

	if _, err := manager.CloseSession(ctx, "01A123BC", "exit.jpg", now); err != nil {
		t.Fatalf("close: %v", err)
	}
	decode(t, <-messages, &update)
	if update.Action != string(service.ActionSessionClosed) {
		t.Fatalf("action = %s", update.Action)
	}
	want := model.StatisticsSnapshot{TotalEntries: 1, TotalExits: 1, UnpaidCount: 1}
	if update.Statistics != want {
		t.Fatalf("statistics = %+v, want %+v", update.Statistics, want)
	}
	if update.Entries[0].Amount != 20000 || update.Entries[0].Status != model.SessionStatusUnpaid {
		t.Fatalf("unexpected entry %+v", update.Entries[0])
	}
}

func TestBroadcasterNotificationAndCarUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewLocalBus()
	messages, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	broadcaster := NewBroadcaster(bus, service.NewReports(repository.NewMemorySessionRepository(), time.UTC), zerolog.Nop())

	broadcaster.Notify(ctx, service.Notification{Title: "Blocked car", Message: "01A123BC", Severity: service.SeverityWarning})
	var notification NotificationMessage
	decode(t, <-messages, &notification)
	if notification.Type != TypeNotification || notification.NotificationType != "warning" || notification.Timestamp.IsZero() {
		t.Fatalf("unexpected notification %+v", notification)
	}

	policy := model.CarPolicy{ID: uuid.New(), Plate: "01A123BC", Blocked: true}
	broadcaster.PolicyChanged(ctx, service.PolicyEvent{Action: service.ActionPolicyCreated, Policy: policy})
	var carUpdate CarUpdate
	decode(t, <-messages, &carUpdate)
	if carUpdate.Type != TypeCarUpdate || carUpdate.Action != "created" || !carUpdate.Car.Blocked {
		t.Fatalf("unexpected car update %+v", carUpdate)
	}
}

func TestBroadcasterSwallowsBusFailures(t *testing.T) {
	bus := NewLocalBus()
	_ = bus.Close()
	broadcaster := NewBroadcaster(bus, service.NewReports(repository.NewMemorySessionRepository(), time.UTC), zerolog.Nop())

	broadcaster.Notify(context.Background(), service.Notification{Title: "x"})
	broadcaster.SessionChanged(context.Background(), service.SessionEvent{Action: service.ActionSessionDeleted})
}

func decode(t *testing.T, payload []byte, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(payload, dst); err != nil {
		t.Fatalf("decode %s: %v", payload, err)
	}
}
