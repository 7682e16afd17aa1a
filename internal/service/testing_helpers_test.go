package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"parking-service/internal/model"
	"parking-service/internal/repository"
)

type recordingPublisher struct {
	mu            sync.Mutex
	sessions      []SessionEvent
	policies      []PolicyEvent
	notifications []Notification
}

func (p *recordingPublisher) SessionChanged(_ context.Context, event SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, event)
}

func (p *recordingPublisher) PolicyChanged(_ context.Context, event PolicyEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policies = append(p.policies, event)
}

func (p *recordingPublisher) Notify(_ context.Context, notification Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, notification)
}

func (p *recordingPublisher) sessionActions() []SessionAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	actions := make([]SessionAction, 0, len(p.sessions))
	for _, event := range p.sessions {
		actions = append(actions, event.Action)
	}
	return actions
}

func (p *recordingPublisher) notificationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notifications)
}

type fixture struct {
	manager   *SessionManager
	resolver  *PolicyResolver
	policies  *repository.MemoryCarPolicyRepository
	sessions  *repository.MemorySessionRepository
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := zerolog.Nop()
	sessions := repository.NewMemorySessionRepository()
	policies := repository.NewMemoryCarPolicyRepository()
	publisher := &recordingPublisher{}

	resolver := NewPolicyResolver(policies, publisher, log)
	reports := NewReports(sessions, time.UTC)
	manager := NewSessionManager(sessions, resolver, reports, publisher, BillingConfig{
		HourlyRate:           10000,
		MinRetriggerInterval: 30 * time.Second,
	}, log)

	return &fixture{
		manager:   manager,
		resolver:  resolver,
		policies:  policies,
		sessions:  sessions,
		publisher: publisher,
	}
}

func (f *fixture) setPolicy(t *testing.T, policy model.CarPolicy) {
	t.Helper()
	if _, err := f.policies.Upsert(context.Background(), &policy); err != nil {
		t.Fatalf("seed policy: %v", err)
	}
}
