package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parking-service/internal/model"
)

type SessionOrder int

const (
	OrderByEntryDesc SessionOrder = iota
	OrderByExitDesc
)

// SessionFilter selects sessions by entry time window [From, To), plate
// substring and dashboard status.
type SessionFilter struct {
	From   *time.Time
	To     *time.Time
	Plate  string
	Status model.SessionStatus
	Order  SessionOrder
	Limit  int
}

// SessionClosure carries the fields written when a session is closed.
type SessionClosure struct {
	ExitTime     time.Time
	ExitImageRef string
	Amount       int64
	Paid         bool
}

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.VehicleSession) error {
	err := r.db.WithContext(ctx).Create(session).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrOpenSessionExists
	}
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.VehicleSession, error) {
	var session model.VehicleSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) FindOpenByPlate(ctx context.Context, plate string) (*model.VehicleSession, error) {
	var session model.VehicleSession
	err := r.db.WithContext(ctx).
		Where("plate = ? AND exit_time IS NULL", plate).
		Order("entry_time DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Close writes the exit fields only if the session is still open.
func (r *SessionRepository) Close(ctx context.Context, id uuid.UUID, closure SessionClosure) error {
	result := r.db.WithContext(ctx).
		Model(&model.VehicleSession{}).
		Where("id = ? AND exit_time IS NULL", id).
		Updates(map[string]interface{}{
			"exit_time":      closure.ExitTime,
			"exit_image_ref": closure.ExitImageRef,
			"amount":         closure.Amount,
			"paid":           closure.Paid,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotOpen
	}
	return nil
}

// MarkPaid flips paid on a closed session. The returned flag is false when the
// row was already paid.
func (r *SessionRepository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.VehicleSession{}).
		Where("id = ? AND exit_time IS NOT NULL AND paid = FALSE", id).
		Update("paid", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.VehicleSession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SessionRepository) List(ctx context.Context, filter SessionFilter) ([]model.VehicleSession, error) {
	query := r.db.WithContext(ctx).Model(&model.VehicleSession{})

	if filter.From != nil {
		query = query.Where("entry_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("entry_time < ?", *filter.To)
	}
	if plate := strings.TrimSpace(filter.Plate); plate != "" {
		query = query.Where("plate ILIKE ?", "%"+plate+"%")
	}

	switch filter.Status {
	case model.SessionStatusPaid:
		query = query.Where("paid = TRUE")
	case model.SessionStatusUnpaid:
		query = query.Where("paid = FALSE AND exit_time IS NOT NULL")
	case model.SessionStatusInside:
		query = query.Where("exit_time IS NULL")
	case model.SessionStatusExited:
		query = query.Where("exit_time IS NOT NULL")
	}

	switch filter.Order {
	case OrderByExitDesc:
		query = query.Order("exit_time DESC NULLS LAST").Order("entry_time DESC")
	default:
		query = query.Order("entry_time DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var sessions []model.VehicleSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountForPlateBetween counts sessions of a plate entered in [from, to),
// ignoring the session with excludeID.
func (r *SessionRepository) CountForPlateBetween(ctx context.Context, plate string, from, to time.Time, excludeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.VehicleSession{}).
		Where("plate = ? AND entry_time >= ? AND entry_time < ? AND id <> ?", plate, from, to, excludeID).
		Count(&count).Error
	return count, err
}
