package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clubhouse/internal/models/db_models"
)

type PendingRegistrationRepository interface {
	Create(ctx context.Context, pending *db_models.PendingRegistration) error
	FindById(ctx context.Context, id uuid.UUID) (*db_models.PendingRegistration, error)
	FindLatestByEmail(ctx context.Context, email string) (*db_models.PendingRegistration, error)
	FindActiveByUsernameOrEmail(ctx context.Context, username, email string, now time.Time) (*db_models.PendingRegistration, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type pendingRegistrationRepository struct {
	db *gorm.DB
}

func NewPendingRegistrationRepository(db *gorm.DB) PendingRegistrationRepository {
	return &pendingRegistrationRepository{db: db}
}

func (p *pendingRegistrationRepository) Create(ctx context.Context, pending *db_models.PendingRegistration) error {
	return p.db.WithContext(ctx).Create(pending).Error
}

func (p *pendingRegistrationRepository) FindById(ctx context.Context, id uuid.UUID) (*db_models.PendingRegistration, error) {
	var pending db_models.PendingRegistration
	err := p.db.WithContext(ctx).First(&pending, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pending, nil
}

func (p *pendingRegistrationRepository) FindLatestByEmail(ctx context.Context, email string) (*db_models.PendingRegistration, error) {
	var pending db_models.PendingRegistration
	err := p.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		Order("created_at DESC").
		First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pending, nil
}

func (p *pendingRegistrationRepository) FindActiveByUsernameOrEmail(ctx context.Context, username, email string, now time.Time) (*db_models.PendingRegistration, error) {
	var pending db_models.PendingRegistration
	err := p.db.WithContext(ctx).
		Where("(username = ? OR LOWER(email) = LOWER(?)) AND expires_at > ?", username, email, now).
		First(&pending).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pending, nil
}

func (p *pendingRegistrationRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := p.db.WithContext(ctx).Where("id = ?", id).Delete(&db_models.PendingRegistration{})
	return res.RowsAffected > 0, res.Error
}

func (p *pendingRegistrationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := p.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&db_models.PendingRegistration{})
	return res.RowsAffected, res.Error
}
