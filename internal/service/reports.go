package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"parking-service/internal/model"
	"parking-service/internal/repository"
)

// Reports is the read side over the session ledger. Days are calendar days in
// the facility time zone.
type Reports struct {
	sessions SessionStore
	location *time.Location
}

func NewReports(sessions SessionStore, location *time.Location) *Reports {
	if location == nil {
		location = time.UTC
	}
	return &Reports{sessions: sessions, location: location}
}

func (r *Reports) Location() *time.Location {
	return r.location
}

// DayRange returns [start, end) of the facility day containing t.
func (r *Reports) DayRange(t time.Time) (time.Time, time.Time) {
	year, month, day := t.In(r.location).Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, r.location)
	return start, start.AddDate(0, 0, 1)
}

func (r *Reports) StatisticsFor(ctx context.Context, date time.Time) (model.StatisticsSnapshot, error) {
	sessions, err := r.SessionsFor(ctx, date, "", model.SessionStatusAll)
	if err != nil {
		return model.StatisticsSnapshot{}, err
	}

	var stats model.StatisticsSnapshot
	for i := range sessions {
		stats.TotalEntries++
		if sessions[i].IsOpen() {
			stats.TotalInside++
			continue
		}
		stats.TotalExits++
		if !sessions[i].Paid {
			stats.UnpaidCount++
		}
	}
	return stats, nil
}

// SessionsFor lists sessions entered on the given day, newest entry first.
func (r *Reports) SessionsFor(ctx context.Context, date time.Time, plateFilter string, status model.SessionStatus) ([]model.VehicleSession, error) {
	from, to := r.DayRange(date)
	return r.sessions.List(ctx, repository.SessionFilter{
		From:   &from,
		To:     &to,
		Plate:  plateFilter,
		Status: status,
	})
}

// UnpaidFor lists exited, unpaid sessions entered on the given day, most
// recent exit first.
func (r *Reports) UnpaidFor(ctx context.Context, date time.Time) ([]model.VehicleSession, error) {
	from, to := r.DayRange(date)
	return r.sessions.List(ctx, repository.SessionFilter{
		From:   &from,
		To:     &to,
		Status: model.SessionStatusUnpaid,
		Order:  repository.OrderByExitDesc,
	})
}

// LatestUnpaidFor returns nil without error when there is nothing to pay.
func (r *Reports) LatestUnpaidFor(ctx context.Context, date time.Time) (*model.VehicleSession, error) {
	from, to := r.DayRange(date)
	sessions, err := r.sessions.List(ctx, repository.SessionFilter{
		From:   &from,
		To:     &to,
		Status: model.SessionStatusUnpaid,
		Order:  repository.OrderByExitDesc,
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return &sessions[0], nil
}

func (r *Reports) ReceiptFor(ctx context.Context, sessionID uuid.UUID) (*model.Receipt, error) {
	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !session.Paid {
		return nil, ErrNotPaid
	}

	var amount int64
	if session.Amount != nil {
		amount = *session.Amount
	}

	return &model.Receipt{
		SessionID:     session.ID,
		Plate:         session.Plate,
		EntryTime:     session.EntryTime,
		ExitTime:      session.ExitTime,
		Amount:        amount,
		Paid:          session.Paid,
		DurationHours: session.DurationHours(),
	}, nil
}
