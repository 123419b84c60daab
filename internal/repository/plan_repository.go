package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"healthplan_billing/internal/models"
)

// PlanRepository reads the plan catalog. The catalog is reference data;
// this repository never writes.
type PlanRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// FindBySlug returns the active plan for a slug, or (nil, nil).
func (r *PlanRepository) FindBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
