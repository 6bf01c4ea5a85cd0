package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clubhouse/internal/models/db_models"
)

// WaiverAuditRepository is insert-only.
type WaiverAuditRepository interface {
	Record(ctx context.Context, audit *db_models.WaiverAudit) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]db_models.WaiverAudit, error)
}

type waiverAuditRepository struct {
	db *gorm.DB
}

func NewWaiverAuditRepository(db *gorm.DB) WaiverAuditRepository {
	return &waiverAuditRepository{db: db}
}

func (w *waiverAuditRepository) Record(ctx context.Context, audit *db_models.WaiverAudit) error {
	return w.db.WithContext(ctx).Create(audit).Error
}

func (w *waiverAuditRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]db_models.WaiverAudit, error) {
	var audits []db_models.WaiverAudit
	err := w.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at").
		Find(&audits).Error
	return audits, err
}
