package repositories_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/repositories"
	"clubhouse/internal/testutil"
	"clubhouse/pkg/utils"
)

func newReservation(itemID uuid.UUID, date string, qty int) *db_models.Reservation {
	hold := time.Now().Add(30 * time.Minute)
	return &db_models.Reservation{
		Name:          "Renter",
		Email:         "renter@example.com",
		RentalItemID:  itemID,
		Date:          date,
		Interval:      db_models.IntervalFullDay,
		Quantity:      qty,
		PaymentStatus: db_models.PaymentStatusUnpaid,
		PaymentMethod: db_models.PaymentMethodStripe,
		Status:        db_models.ReservationPending,
		HoldExpiresAt: &hold,
	}
}

func TestCreateWithHoldRespectsInventory(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewReservationRepository(db)
	ctx := context.Background()
	item := uuid.New()

	require.NoError(t, repo.CreateWithHold(ctx, newReservation(item, "2025-07-04", 4), 5))
	require.ErrorIs(t, repo.CreateWithHold(ctx, newReservation(item, "2025-07-04", 2), 5), utils.ErrInsufficientInventory)
	require.NoError(t, repo.CreateWithHold(ctx, newReservation(item, "2025-07-04", 1), 5))
	require.NoError(t, repo.CreateWithHold(ctx, newReservation(item, "2025-07-05", 5), 5))

	reserved, err := repo.ReservedByDate(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2025-07-04": 5, "2025-07-05": 5}, reserved)

	n, err := repo.Counter(ctx, item, "2025-07-04")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestReleaseGivesUnitsBackOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewReservationRepository(db)
	ctx := context.Background()
	item := uuid.New()

	r := newReservation(item, "2025-08-01", 3)
	require.NoError(t, repo.CreateWithHold(ctx, r, 3))

	released, err := repo.Release(ctx, r.ID, db_models.ReservationCancelled)
	require.NoError(t, err)
	assert.Equal(t, db_models.ReservationCancelled, released.Status)

	_, err = repo.Release(ctx, r.ID, db_models.ReservationExpired)
	require.NoError(t, err)

	n, err := repo.Counter(ctx, item, "2025-08-01")
	require.NoError(t, err)
	assert.Zero(t, n)

	reloaded, err := repo.FindById(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, db_models.ReservationCancelled, reloaded.Status)

	_, err = repo.Release(ctx, uuid.New(), db_models.ReservationCancelled)
	require.ErrorIs(t, err, utils.ErrReservationNotFound)
}

func TestConfirmOnlyPending(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewReservationRepository(db)
	ctx := context.Background()

	r := newReservation(uuid.New(), "2025-08-02", 1)
	require.NoError(t, repo.CreateWithHold(ctx, r, 2))

	confirmed, err := repo.Confirm(ctx, r.ID, db_models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, db_models.ReservationConfirmed, confirmed.Status)
	assert.Equal(t, db_models.PaymentStatusPaid, confirmed.PaymentStatus)
	assert.Nil(t, confirmed.HoldExpiresAt)

	_, err = repo.Confirm(ctx, r.ID, db_models.PaymentStatusPaid)
	require.ErrorIs(t, err, utils.ErrReservationNotFound)
}

func TestListExpiredHolds(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewReservationRepository(db)
	ctx := context.Background()

	stale := newReservation(uuid.New(), "2025-08-03", 1)
	past := time.Now().UTC().Add(-time.Hour)
	stale.HoldExpiresAt = &past
	require.NoError(t, repo.CreateWithHold(ctx, stale, 1))

	fresh := newReservation(uuid.New(), "2025-08-03", 1)
	future := time.Now().UTC().Add(time.Hour)
	fresh.HoldExpiresAt = &future
	require.NoError(t, repo.CreateWithHold(ctx, fresh, 1))

	expired, err := repo.ListExpiredHolds(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
}

func TestConcurrentBookingsNeverOvercommit(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewReservationRepository(db)

	rapid.Check(t, func(rt *rapid.T) {
		inventory := rapid.IntRange(1, 8).Draw(rt, "inventory")
		quantities := rapid.SliceOfN(rapid.IntRange(1, 4), 1, 10).Draw(rt, "quantities")
		item := uuid.New()
		date := "2025-09-01"

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			granted int
		)
		for _, q := range quantities {
			wg.Add(1)
			go func(q int) {
				defer wg.Done()
				err := repo.CreateWithHold(context.Background(), newReservation(item, date, q), inventory)
				if err == nil {
					mu.Lock()
					granted += q
					mu.Unlock()
				}
			}(q)
		}
		wg.Wait()

		if granted > inventory {
			rt.Fatalf("granted %d units of %d", granted, inventory)
		}
		counter, err := repo.Counter(context.Background(), item, date)
		if err != nil {
			rt.Fatalf("counter: %v", err)
		}
		if counter != granted {
			rt.Fatalf("counter %d != granted %d", counter, granted)
		}
		reserved, err := repo.ReservedByDate(context.Background(), item)
		if err != nil {
			rt.Fatalf("reserved: %v", err)
		}
		if reserved[date] != granted {
			rt.Fatalf("reserved sum %d != granted %d", reserved[date], granted)
		}
	})
}
