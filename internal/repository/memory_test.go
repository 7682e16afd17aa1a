package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"parking-service/internal/model"
)

func TestMemorySessionRepositoryRejectsSecondOpenSession(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := &model.VehicleSession{Plate: "01A123BC", EntryTime: now, EntryImageRef: "a.jpg"}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := &model.VehicleSession{Plate: "01A123BC", EntryTime: now.Add(time.Minute), EntryImageRef: "b.jpg"}
	if err := repo.Create(ctx, second); !errors.Is(err, ErrOpenSessionExists) {
		t.Fatalf("expected ErrOpenSessionExists, got %v", err)
	}
}

func TestMemorySessionRepositoryCloseIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	session := &model.VehicleSession{Plate: "01A123BC", EntryTime: now, EntryImageRef: "a.jpg"}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	closure := SessionClosure{ExitTime: now.Add(time.Hour), ExitImageRef: "exit.jpg", Amount: 10000}
	if err := repo.Close(ctx, session.ID, closure); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := repo.Close(ctx, session.ID, closure); !errors.Is(err, ErrSessionNotOpen) {
		t.Fatalf("expected ErrSessionNotOpen on second close, got %v", err)
	}

	stored, err := repo.GetByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Amount == nil || *stored.Amount != 10000 {
		t.Fatalf("unexpected amount %v", stored.Amount)
	}
	if _, err := repo.FindOpenByPlate(ctx, "01A123BC"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no open session, got %v", err)
	}
}

func TestMemorySessionRepositoryMarkPaid(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	session := &model.VehicleSession{Plate: "01A123BC", EntryTime: now, EntryImageRef: "a.jpg"}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := repo.MarkPaid(ctx, session.ID)
	if err != nil || changed {
		t.Fatalf("open session must not be marked paid: changed=%v err=%v", changed, err)
	}

	if err := repo.Close(ctx, session.ID, SessionClosure{ExitTime: now.Add(time.Hour), Amount: 10000}); err != nil {
		t.Fatalf("close: %v", err)
	}
	changed, err = repo.MarkPaid(ctx, session.ID)
	if err != nil || !changed {
		t.Fatalf("first pay: changed=%v err=%v", changed, err)
	}
	changed, err = repo.MarkPaid(ctx, session.ID)
	if err != nil || changed {
		t.Fatalf("second pay: changed=%v err=%v", changed, err)
	}
}

func TestMemorySessionRepositoryList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	seed := []struct {
		plate  string
		entry  time.Duration
		closed bool
		paid   bool
	}{
		{plate: "01A111AA", entry: 8 * time.Hour},
		{plate: "01B222BB", entry: 9 * time.Hour, closed: true},
		{plate: "01A333CC", entry: 10 * time.Hour, closed: true, paid: true},
		{plate: "01A444DD", entry: 30 * time.Hour},
	}
	for _, s := range seed {
		session := &model.VehicleSession{Plate: s.plate, EntryTime: day.Add(s.entry), EntryImageRef: "img"}
		if err := repo.Create(ctx, session); err != nil {
			t.Fatalf("create %s: %v", s.plate, err)
		}
		if s.closed {
			closure := SessionClosure{ExitTime: day.Add(s.entry + time.Hour), Amount: 10000, Paid: s.paid}
			if err := repo.Close(ctx, session.ID, closure); err != nil {
				t.Fatalf("close %s: %v", s.plate, err)
			}
		}
	}

	from, to := day, day.Add(24*time.Hour)
	cases := []struct {
		name   string
		filter SessionFilter
		want   []string
	}{
		{name: "day window", filter: SessionFilter{From: &from, To: &to}, want: []string{"01A333CC", "01B222BB", "01A111AA"}},
		{name: "plate substring", filter: SessionFilter{From: &from, To: &to, Plate: "01a"}, want: []string{"01A333CC", "01A111AA"}},
		{name: "inside", filter: SessionFilter{From: &from, To: &to, Status: model.SessionStatusInside}, want: []string{"01A111AA"}},
		{name: "unpaid", filter: SessionFilter{From: &from, To: &to, Status: model.SessionStatusUnpaid}, want: []string{"01B222BB"}},
		{name: "paid", filter: SessionFilter{Status: model.SessionStatusPaid}, want: []string{"01A333CC"}},
		{name: "exited by exit desc", filter: SessionFilter{Status: model.SessionStatusExited, Order: OrderByExitDesc}, want: []string{"01A333CC", "01B222BB"}},
		{name: "limit", filter: SessionFilter{Limit: 1}, want: []string{"01A444DD"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d sessions, want %d", len(got), len(tc.want))
			}
			for i, plate := range tc.want {
				if got[i].Plate != plate {
					t.Fatalf("position %d: got %s, want %s", i, got[i].Plate, plate)
				}
			}
		})
	}
}

func TestMemoryCarPolicyRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCarPolicyRepository()

	created, err := repo.Upsert(ctx, &model.CarPolicy{Plate: "01A123BC", Blocked: true})
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	created, err = repo.Upsert(ctx, &model.CarPolicy{Plate: "01A123BC"})
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}

	policy, err := repo.GetByPlate(ctx, "01A123BC")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if policy.Blocked {
		t.Fatalf("expected blocked flag to be cleared")
	}
	if err := repo.Create(ctx, &model.CarPolicy{Plate: "01A123BC"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}
