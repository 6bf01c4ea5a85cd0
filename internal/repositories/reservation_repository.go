package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clubhouse/internal/models/db_models"
	"clubhouse/pkg/utils"
)

type ReservationRepository interface {
	// CreateWithHold reserves units on the (item, date) counter and inserts the reservation in one
	// transaction. It fails with utils.ErrInsufficientInventory when the units are not there.
	CreateWithHold(ctx context.Context, reservation *db_models.Reservation, inventory int) error
	// Release moves a holding reservation to status and gives its units back.
	Release(ctx context.Context, id uuid.UUID, status db_models.ReservationStatus) (*db_models.Reservation, error)
	Confirm(ctx context.Context, id uuid.UUID, paymentStatus string) (*db_models.Reservation, error)
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error
	FindById(ctx context.Context, id uuid.UUID) (*db_models.Reservation, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]db_models.Reservation, error)
	ListExpiredHolds(ctx context.Context, now time.Time) ([]db_models.Reservation, error)
	// ReservedByDate sums pending and confirmed quantities per date for an item.
	ReservedByDate(ctx context.Context, itemID uuid.UUID) (map[string]int, error)
	Counter(ctx context.Context, itemID uuid.UUID, date string) (int, error)
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) CreateWithHold(ctx context.Context, reservation *db_models.Reservation, inventory int) error {
	if reservation.Quantity < 1 {
		return utils.ErrInvalidInput
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter := db_models.ReservationCounter{RentalItemID: reservation.RentalItemID, Date: reservation.Date}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return err
		}

		res := tx.Model(&db_models.ReservationCounter{}).
			Where("rental_item_id = ? AND date = ? AND reserved + ? <= ?",
				reservation.RentalItemID, reservation.Date, reservation.Quantity, inventory).
			UpdateColumn("reserved", gorm.Expr("reserved + ?", reservation.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrInsufficientInventory
		}

		return tx.Create(reservation).Error
	})
}

func (r *reservationRepository) Release(ctx context.Context, id uuid.UUID, status db_models.ReservationStatus) (*db_models.Reservation, error) {
	var reservation db_models.Reservation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&reservation, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrReservationNotFound
			}
			return err
		}
		if !reservation.Status.HoldsInventory() {
			return nil
		}

		// guarded on the current status so two releases never both decrement
		res := tx.Model(&db_models.Reservation{}).
			Where("id = ? AND status = ?", id, reservation.Status).
			Updates(map[string]interface{}{"status": status, "hold_expires_at": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&db_models.ReservationCounter{}).
			Where("rental_item_id = ? AND date = ? AND reserved >= ?",
				reservation.RentalItemID, reservation.Date, reservation.Quantity).
			UpdateColumn("reserved", gorm.Expr("reserved - ?", reservation.Quantity)).Error; err != nil {
			return err
		}
		reservation.Status = status
		reservation.HoldExpiresAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) Confirm(ctx context.Context, id uuid.UUID, paymentStatus string) (*db_models.Reservation, error) {
	res := r.db.WithContext(ctx).
		Model(&db_models.Reservation{}).
		Where("id = ? AND status = ?", id, db_models.ReservationPending).
		Updates(map[string]interface{}{
			"status":          db_models.ReservationConfirmed,
			"payment_status":  paymentStatus,
			"hold_expires_at": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrReservationNotFound
	}
	return r.FindById(ctx, id)
}

func (r *reservationRepository) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&db_models.Reservation{}).
		Where("id = ?", id).
		Update("checkout_session_id", sessionID).Error
}

func (r *reservationRepository) FindById(ctx context.Context, id uuid.UUID) (*db_models.Reservation, error) {
	var reservation db_models.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

func (r *reservationRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]db_models.Reservation, error) {
	var reservations []db_models.Reservation
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("date DESC").
		Find(&reservations).Error
	return reservations, err
}

func (r *reservationRepository) ListExpiredHolds(ctx context.Context, now time.Time) ([]db_models.Reservation, error) {
	var reservations []db_models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND hold_expires_at IS NOT NULL AND hold_expires_at <= ?", db_models.ReservationPending, now).
		Find(&reservations).Error
	return reservations, err
}

func (r *reservationRepository) ReservedByDate(ctx context.Context, itemID uuid.UUID) (map[string]int, error) {
	var rows []struct {
		Date     string
		Reserved int
	}
	err := r.db.WithContext(ctx).
		Model(&db_models.Reservation{}).
		Select("date, SUM(quantity) AS reserved").
		Where("rental_item_id = ? AND status IN ?", itemID,
			[]db_models.ReservationStatus{db_models.ReservationPending, db_models.ReservationConfirmed}).
		Group("date").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Date] = row.Reserved
	}
	return out, nil
}

func (r *reservationRepository) Counter(ctx context.Context, itemID uuid.UUID, date string) (int, error) {
	var counter db_models.ReservationCounter
	err := r.db.WithContext(ctx).First(&counter, "rental_item_id = ? AND date = ?", itemID, date).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return counter.Reserved, err
}
