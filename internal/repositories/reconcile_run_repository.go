package repositories

import (
	"context"

	"gorm.io/gorm"

	"clubhouse/internal/models/db_models"
)

type ReconcileRunRepository interface {
	Record(ctx context.Context, run *db_models.ReconcileRun) error
	ListRecent(ctx context.Context, limit int) ([]db_models.ReconcileRun, error)
}

type reconcileRunRepository struct {
	db *gorm.DB
}

func NewReconcileRunRepository(db *gorm.DB) ReconcileRunRepository {
	return &reconcileRunRepository{db: db}
}

func (r *reconcileRunRepository) Record(ctx context.Context, run *db_models.ReconcileRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *reconcileRunRepository) ListRecent(ctx context.Context, limit int) ([]db_models.ReconcileRun, error) {
	var runs []db_models.ReconcileRun
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
