package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clubhouse/internal/models/db_models"
	"clubhouse/pkg/utils"
)

type AccountRepository interface {
	Create(ctx context.Context, account *db_models.Account) error
	// CreateFromPending inserts the account and consumes the pending registration atomically.
	// It fails with utils.ErrPendingRegistration when the pending row is already gone.
	CreateFromPending(ctx context.Context, account *db_models.Account, pendingID uuid.UUID) error
	FindById(ctx context.Context, id uuid.UUID) (*db_models.Account, error)
	FindByUsername(ctx context.Context, username string) (*db_models.Account, error)
	FindByEmail(ctx context.Context, email string) (*db_models.Account, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*db_models.Account, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*db_models.Account, error)
	ListAll(ctx context.Context) ([]db_models.Account, error)
	ListPaymentIssues(ctx context.Context) ([]db_models.Account, error)
	ListTrialsEndingBetween(ctx context.Context, start, end time.Time) ([]db_models.Account, error)
	ListMailable(ctx context.Context) ([]db_models.Account, error)
	Save(ctx context.Context, account *db_models.Account) error
	UpdateFields(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error
	UpdateWhere(ctx context.Context, changes map[string]interface{}, query interface{}, args ...interface{}) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	FailureReasonStats(ctx context.Context) ([]FailureReasonStat, error)
}

type StatusCount struct {
	Status db_models.AccountStatus `json:"status"`
	Count  int64                   `json:"count"`
}

type FailureReasonStat struct {
	Reason      string  `json:"reason"`
	Count       int64   `json:"count"`
	AvgAttempts float64 `json:"avg_attempts"`
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

func (a *accountRepository) Create(ctx context.Context, account *db_models.Account) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		return recordWaiverAcceptance(ctx, tx, account)
	})
}

func (a *accountRepository) CreateFromPending(ctx context.Context, account *db_models.Account, pendingID uuid.UUID) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", pendingID).Delete(&db_models.PendingRegistration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrPendingRegistration
		}
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		return recordWaiverAcceptance(ctx, tx, account)
	})
}

func recordWaiverAcceptance(ctx context.Context, tx *gorm.DB, account *db_models.Account) error {
	if !account.Waiver.Accepted {
		return nil
	}
	actor := auditActorFrom(ctx)
	id := account.ID
	return tx.Create(&db_models.WaiverAudit{
		AccountID:  &id,
		Action:     db_models.WaiverActionCreate,
		Field:      "waiver",
		NewValue:   account.Waiver.Version,
		ModifiedBy: actor.ModifiedBy,
		IPAddress:  account.Waiver.IPAddress,
		UserAgent:  account.Waiver.UserAgent,
	}).Error
}

func (a *accountRepository) first(ctx context.Context, query interface{}, args ...interface{}) (*db_models.Account, error) {
	var account db_models.Account
	err := a.db.WithContext(ctx).Where(query, args...).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

func (a *accountRepository) FindById(ctx context.Context, id uuid.UUID) (*db_models.Account, error) {
	return a.first(ctx, "id = ?", id)
}

func (a *accountRepository) FindByUsername(ctx context.Context, username string) (*db_models.Account, error) {
	return a.first(ctx, "username = ?", username)
}

func (a *accountRepository) FindByEmail(ctx context.Context, email string) (*db_models.Account, error) {
	return a.first(ctx, "LOWER(email) = LOWER(?)", email)
}

func (a *accountRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (*db_models.Account, error) {
	return a.first(ctx, "username = ? OR LOWER(email) = LOWER(?)", username, email)
}

func (a *accountRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*db_models.Account, error) {
	if customerID == "" {
		return nil, nil
	}
	return a.first(ctx, "stripe_customer_id = ?", customerID)
}

func (a *accountRepository) ListAll(ctx context.Context) ([]db_models.Account, error) {
	var accounts []db_models.Account
	err := a.db.WithContext(ctx).Order("username").Find(&accounts).Error
	return accounts, err
}

func (a *accountRepository) ListPaymentIssues(ctx context.Context) ([]db_models.Account, error) {
	var accounts []db_models.Account
	err := a.db.WithContext(ctx).
		Where("status IN ? OR last_failure_attempts >= 1",
			[]db_models.AccountStatus{db_models.StatusPaused, db_models.StatusSuspended}).
		Order("username").
		Find(&accounts).Error
	return accounts, err
}

func (a *accountRepository) ListTrialsEndingBetween(ctx context.Context, start, end time.Time) ([]db_models.Account, error) {
	var accounts []db_models.Account
	err := a.db.WithContext(ctx).
		Where("status = ? AND trial_end >= ? AND trial_end < ?", db_models.StatusTrial, start, end).
		Order("username").
		Find(&accounts).Error
	return accounts, err
}

func (a *accountRepository) ListMailable(ctx context.Context) ([]db_models.Account, error) {
	var accounts []db_models.Account
	err := a.db.WithContext(ctx).
		Where("email <> '' AND status <> ?", db_models.StatusInactive).
		Order("username").
		Find(&accounts).Error
	return accounts, err
}

func (a *accountRepository) Save(ctx context.Context, account *db_models.Account) error {
	return a.db.WithContext(ctx).Save(account).Error
}

func (a *accountRepository) UpdateFields(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error {
	res := a.db.WithContext(ctx).
		Model(&db_models.Account{BaseModel: db_models.BaseModel{ID: id}}).
		Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrAccountNotFound
	}
	return nil
}

func (a *accountRepository) UpdateWhere(ctx context.Context, changes map[string]interface{}, query interface{}, args ...interface{}) (int64, error) {
	res := a.db.WithContext(ctx).
		Model(&db_models.Account{}).
		Where(query, args...).
		Updates(changes)
	return res.RowsAffected, res.Error
}

func (a *accountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account db_models.Account
		if err := tx.First(&account, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrAccountNotFound
			}
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&db_models.PaymentFailure{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&account).Error; err != nil {
			return err
		}
		if !account.Waiver.Accepted {
			return nil
		}
		actor := auditActorFrom(ctx)
		return tx.Create(&db_models.WaiverAudit{
			AccountID:     &id,
			Action:        db_models.WaiverActionDelete,
			Field:         "waiver",
			PreviousValue: account.Waiver.Version,
			ModifiedBy:    actor.ModifiedBy,
			IPAddress:     actor.IPAddress,
			UserAgent:     actor.UserAgent,
		}).Error
	})
}

func (a *accountRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := a.db.WithContext(ctx).
		Model(&db_models.Account{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}

func (a *accountRepository) FailureReasonStats(ctx context.Context) ([]FailureReasonStat, error) {
	var rows []FailureReasonStat
	err := a.db.WithContext(ctx).
		Model(&db_models.Account{}).
		Select("last_failure_reason AS reason, COUNT(*) AS count, AVG(last_failure_attempts) AS avg_attempts").
		Where("last_failure_attempts >= 1").
		Group("last_failure_reason").
		Order("count DESC, reason").
		Scan(&rows).Error
	return rows, err
}
