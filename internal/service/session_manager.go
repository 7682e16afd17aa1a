package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-service/internal/model"
	"parking-service/internal/repository"
	"parking-service/internal/utils"
)

type SessionStore interface {
	Create(ctx context.Context, session *model.VehicleSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.VehicleSession, error)
	FindOpenByPlate(ctx context.Context, plate string) (*model.VehicleSession, error)
	Close(ctx context.Context, id uuid.UUID, closure repository.SessionClosure) error
	MarkPaid(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter repository.SessionFilter) ([]model.VehicleSession, error)
	CountForPlateBetween(ctx context.Context, plate string, from, to time.Time, excludeID uuid.UUID) (int64, error)
}

type BillingConfig struct {
	HourlyRate           int64
	MinRetriggerInterval time.Duration
}

// SessionManager owns every mutation of the session ledger. Mutations of one
// plate are serialized; different plates run in parallel.
type SessionManager struct {
	sessions  SessionStore
	policies  *PolicyResolver
	reports   *Reports
	publisher EventPublisher
	billing   BillingConfig
	locks     *plateLocks
	log       zerolog.Logger
}

func NewSessionManager(
	sessions SessionStore,
	policies *PolicyResolver,
	reports *Reports,
	publisher EventPublisher,
	billing BillingConfig,
	log zerolog.Logger,
) *SessionManager {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &SessionManager{
		sessions:  sessions,
		policies:  policies,
		reports:   reports,
		publisher: publisher,
		billing:   billing,
		locks:     newPlateLocks(),
		log:       log,
	}
}

func (m *SessionManager) OpenSession(ctx context.Context, rawPlate, entryImageRef string, now time.Time) (*model.VehicleSession, error) {
	plate := utils.NormalizePlate(rawPlate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if entryImageRef == "" {
		return nil, fmt.Errorf("%w: entry image is required", ErrInvalidInput)
	}

	policy, err := m.policies.Resolve(ctx, plate)
	if err != nil {
		return nil, err
	}
	if policy.Blocked {
		return nil, m.rejectBlocked(ctx, plate, model.CameraDirectionEntry, now)
	}

	session, err := m.openLocked(ctx, plate, entryImageRef, now)
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("plate", plate).
		Str("session_id", session.ID.String()).
		Str("policy", policy.Kind()).
		Msg("session opened")

	m.publishSession(ctx, ActionSessionOpened, session.ID, plate, now)
	return session, nil
}

func (m *SessionManager) openLocked(ctx context.Context, plate, entryImageRef string, now time.Time) (*model.VehicleSession, error) {
	unlock := m.locks.lock(plate)
	defer unlock()

	if _, err := m.sessions.FindOpenByPlate(ctx, plate); err == nil {
		return nil, ErrDuplicateOpenSession
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	session := &model.VehicleSession{
		Plate:         plate,
		EntryTime:     now.UTC(),
		EntryImageRef: entryImageRef,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrOpenSessionExists) {
			return nil, ErrDuplicateOpenSession
		}
		return nil, err
	}
	return session, nil
}

func (m *SessionManager) CloseSession(ctx context.Context, rawPlate, exitImageRef string, now time.Time) (*model.VehicleSession, error) {
	plate := utils.NormalizePlate(rawPlate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if exitImageRef == "" {
		return nil, fmt.Errorf("%w: exit image is required", ErrInvalidInput)
	}

	policy, err := m.policies.Resolve(ctx, plate)
	if err != nil {
		return nil, err
	}
	if policy.Blocked {
		return nil, m.rejectBlocked(ctx, plate, model.CameraDirectionExit, now)
	}

	session, err := m.closeLocked(ctx, policy, plate, exitImageRef, now)
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Str("plate", plate).
		Str("session_id", session.ID.String()).
		Int64("amount", *session.Amount).
		Bool("paid", session.Paid).
		Msg("session closed")

	m.publishSession(ctx, ActionSessionClosed, session.ID, plate, now)
	return session, nil
}

func (m *SessionManager) closeLocked(ctx context.Context, policy *model.CarPolicy, plate, exitImageRef string, now time.Time) (*model.VehicleSession, error) {
	unlock := m.locks.lock(plate)
	defer unlock()

	session, err := m.sessions.FindOpenByPlate(ctx, plate)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoOpenSession
		}
		return nil, err
	}

	exitTime := now.UTC()
	if exitTime.Before(session.EntryTime) {
		return nil, fmt.Errorf("%w: exit time is before entry time", ErrInvalidInput)
	}
	if exitTime.Sub(session.EntryTime) < m.billing.MinRetriggerInterval {
		return nil, ErrDuplicateRetrigger
	}

	amount, paid, err := m.feeFor(ctx, policy, session, exitTime)
	if err != nil {
		return nil, err
	}

	closure := repository.SessionClosure{
		ExitTime:     exitTime,
		ExitImageRef: exitImageRef,
		Amount:       amount,
		Paid:         paid,
	}
	if err := m.sessions.Close(ctx, session.ID, closure); err != nil {
		if errors.Is(err, repository.ErrSessionNotOpen) {
			return nil, ErrNoOpenSession
		}
		return nil, err
	}

	session.ExitTime = &exitTime
	session.ExitImageRef = &exitImageRef
	session.Amount = &amount
	session.Paid = paid
	return session, nil
}

// feeFor applies the car policy. Free cars never pay. A special taxi rides
// free on its first session of the day and pays normally afterwards.
func (m *SessionManager) feeFor(ctx context.Context, policy *model.CarPolicy, session *model.VehicleSession, exitTime time.Time) (int64, bool, error) {
	if policy.Free {
		return 0, true, nil
	}

	if policy.SpecialTaxi {
		from, to := m.reports.DayRange(exitTime)
		earlier, err := m.sessions.CountForPlateBetween(ctx, session.Plate, from, to, session.ID)
		if err != nil {
			return 0, false, err
		}
		if earlier == 0 {
			return 0, true, nil
		}
	}

	amount, err := ComputeFee(session.EntryTime, exitTime, m.billing.HourlyRate)
	if err != nil {
		return 0, false, err
	}
	return amount, false, nil
}

func (m *SessionManager) MarkPaid(ctx context.Context, sessionID uuid.UUID) (*model.VehicleSession, error) {
	existing, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session, changed, err := m.markPaidLocked(ctx, existing.Plate, sessionID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return session, nil
	}

	m.log.Info().
		Str("plate", session.Plate).
		Str("session_id", session.ID.String()).
		Msg("payment recorded")

	m.publishSession(ctx, ActionPaymentRecorded, session.ID, session.Plate, time.Now())
	return session, nil
}

func (m *SessionManager) markPaidLocked(ctx context.Context, plate string, sessionID uuid.UUID) (*model.VehicleSession, bool, error) {
	unlock := m.locks.lock(plate)
	defer unlock()

	session, err := m.getSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	if session.IsOpen() {
		return nil, false, ErrSessionOpen
	}
	if session.Paid {
		return session, false, nil
	}

	changed, err := m.sessions.MarkPaid(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	session.Paid = true
	return session, changed, nil
}

func (m *SessionManager) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	existing, err := m.getSession(ctx, sessionID)
	if err != nil {
		return err
	}

	unlock := m.locks.lock(existing.Plate)
	err = m.sessions.Delete(ctx, sessionID)
	unlock()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	m.log.Info().
		Str("plate", existing.Plate).
		Str("session_id", sessionID.String()).
		Msg("session deleted")

	m.publishSession(ctx, ActionSessionDeleted, sessionID, existing.Plate, time.Now())
	return nil
}

func (m *SessionManager) StatisticsFor(ctx context.Context, date time.Time) (model.StatisticsSnapshot, error) {
	return m.reports.StatisticsFor(ctx, date)
}

func (m *SessionManager) SessionsFor(ctx context.Context, date time.Time, plateFilter string, status model.SessionStatus) ([]model.VehicleSession, error) {
	return m.reports.SessionsFor(ctx, date, plateFilter, status)
}

func (m *SessionManager) UnpaidFor(ctx context.Context, date time.Time) ([]model.VehicleSession, error) {
	return m.reports.UnpaidFor(ctx, date)
}

func (m *SessionManager) LatestUnpaidFor(ctx context.Context, date time.Time) (*model.VehicleSession, error) {
	return m.reports.LatestUnpaidFor(ctx, date)
}

func (m *SessionManager) ReceiptFor(ctx context.Context, sessionID uuid.UUID) (*model.Receipt, error) {
	return m.reports.ReceiptFor(ctx, sessionID)
}

func (m *SessionManager) getSession(ctx context.Context, sessionID uuid.UUID) (*model.VehicleSession, error) {
	session, err := m.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func (m *SessionManager) rejectBlocked(ctx context.Context, plate string, direction model.CameraDirection, now time.Time) error {
	m.log.Warn().
		Str("plate", plate).
		Str("direction", string(direction)).
		Msg("blocked car rejected")

	m.publisher.Notify(context.WithoutCancel(ctx), Notification{
		Title:     "Blocked car",
		Message:   fmt.Sprintf("Blocked car %s attempted %s", plate, direction),
		Severity:  SeverityWarning,
		Plate:     plate,
		Timestamp: now.UTC(),
	})
	return fmt.Errorf("%w: car %s is blocked", ErrPolicyRejected, plate)
}

func (m *SessionManager) publishSession(ctx context.Context, action SessionAction, sessionID uuid.UUID, plate string, at time.Time) {
	m.publisher.SessionChanged(context.WithoutCancel(ctx), SessionEvent{
		Action:     action,
		SessionID:  sessionID,
		Plate:      plate,
		OccurredAt: at.UTC(),
	})
}
