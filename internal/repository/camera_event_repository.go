package repository

import (
	"context"

	"gorm.io/gorm"

	"parking-service/internal/model"
)

type CameraEventRepository struct {
	db *gorm.DB
}

func NewCameraEventRepository(db *gorm.DB) *CameraEventRepository {
	return &CameraEventRepository{db: db}
}

func (r *CameraEventRepository) Create(ctx context.Context, event *model.CameraEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *CameraEventRepository) ListRecent(ctx context.Context, direction *model.CameraDirection, limit int) ([]model.CameraEvent, error) {
	query := r.db.WithContext(ctx).Model(&model.CameraEvent{})
	if direction != nil {
		query = query.Where("direction = ?", *direction)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var events []model.CameraEvent
	err := query.Order("event_time DESC").Limit(limit).Find(&events).Error
	return events, err
}
