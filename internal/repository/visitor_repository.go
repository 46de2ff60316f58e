package repository

import (
	"context"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"gorm.io/gorm"
)

type VisitorRepository interface {
	Create(ctx context.Context, v *model.VisitorLog) error
}

type visitorRepository struct {
	db *gorm.DB
}

func NewVisitorRepository(db *gorm.DB) VisitorRepository {
	return &visitorRepository{db: db}
}

func (r *visitorRepository) Create(ctx context.Context, v *model.VisitorLog) error {
	return r.db.WithContext(ctx).Create(v).Error
}
