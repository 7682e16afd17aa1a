package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-service/internal/model"
)

type CarPolicyRepository struct {
	db *gorm.DB
}

func NewCarPolicyRepository(db *gorm.DB) *CarPolicyRepository {
	return &CarPolicyRepository{db: db}
}

func (r *CarPolicyRepository) GetByPlate(ctx context.Context, plate string) (*model.CarPolicy, error) {
	var policy model.CarPolicy
	err := r.db.WithContext(ctx).Where("plate = ?", plate).First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &policy, nil
}

func (r *CarPolicyRepository) Create(ctx context.Context, policy *model.CarPolicy) error {
	err := r.db.WithContext(ctx).Create(policy).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	return err
}

// Upsert writes the policy flags keyed by plate and reports whether a new row
// was created.
func (r *CarPolicyRepository) Upsert(ctx context.Context, policy *model.CarPolicy) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.CarPolicy
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("plate = ?", policy.Plate).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(policy).Error
		case err != nil:
			return err
		}

		policy.ID = existing.ID
		policy.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Updates(map[string]interface{}{
			"free":         policy.Free,
			"special_taxi": policy.SpecialTaxi,
			"blocked":      policy.Blocked,
			"position":     policy.Position,
		}).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}
