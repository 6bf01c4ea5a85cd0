package repositories

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clubhouse/internal/models/db_models"
)

type PaymentFailureRepository interface {
	// Record appends a failure unless one with the same external event id exists for the account.
	Record(ctx context.Context, failure *db_models.PaymentFailure) (bool, error)
	Exists(ctx context.Context, accountID uuid.UUID, stripeEventID string) (bool, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]db_models.PaymentFailure, error)
}

type paymentFailureRepository struct {
	db *gorm.DB
}

func NewPaymentFailureRepository(db *gorm.DB) PaymentFailureRepository {
	return &paymentFailureRepository{db: db}
}

func (p *paymentFailureRepository) Record(ctx context.Context, failure *db_models.PaymentFailure) (bool, error) {
	res := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(failure)
	return res.RowsAffected > 0, res.Error
}

func (p *paymentFailureRepository) Exists(ctx context.Context, accountID uuid.UUID, stripeEventID string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&db_models.PaymentFailure{}).
		Where("account_id = ? AND stripe_event_id = ?", accountID, stripeEventID).
		Count(&count).Error
	return count > 0, err
}

func (p *paymentFailureRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]db_models.PaymentFailure, error) {
	var failures []db_models.PaymentFailure
	err := p.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("occurred_at DESC").
		Find(&failures).Error
	return failures, err
}
