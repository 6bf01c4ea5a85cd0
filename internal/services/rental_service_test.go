package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/models/request_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/services"
	"clubhouse/pkg/utils"
)

func booking(item *db_models.RentalItem, date string, quantity int) request_models.BookingRequest {
	return request_models.BookingRequest{
		RentalItemID: item.ID.String(),
		Date:         date,
		Interval:     string(db_models.IntervalHalfDay),
		TimeBlock:    "AM",
		Quantity:     quantity,
		Name:         "Pat Paddler",
		Email:        "pat@example.com",
	}
}

func TestCreateBooking_HoldsUnitsAndStartsCheckout(t *testing.T) {
	e := newEnv(t)
	item := e.rentalItem(t, 5)
	date := futureDate(3)
	owner := services.Requester{AccountID: uuid.New(), Username: "pat"}

	resp, err := e.rentalService().CreateBooking(context.Background(), owner, booking(item, date, 2))
	require.NoError(t, err)

	r := resp.Reservation
	assert.Equal(t, db_models.ReservationPending, r.Status)
	assert.Equal(t, db_models.PaymentMethodStripe, r.PaymentMethod)
	assert.EqualValues(t, 6000, r.Total)
	require.NotNil(t, r.HoldExpiresAt)
	require.NotNil(t, r.AccountID)
	assert.Equal(t, owner.AccountID, *r.AccountID)
	assert.NotEmpty(t, resp.CheckoutURL)

	require.Len(t, e.gateway.Sessions, 1)
	session := e.gateway.Sessions[0]
	assert.Equal(t, payments.CheckoutPayment, session.Mode)
	assert.Equal(t, r.ID.String(), session.Metadata["reservation_id"])
	require.Len(t, session.LineItems, 1)
	assert.EqualValues(t, 3000, session.LineItems[0].UnitAmount)
	assert.EqualValues(t, 2, session.LineItems[0].Quantity)

	reserved, err := e.reservations.Counter(context.Background(), item.ID, date)
	require.NoError(t, err)
	assert.Equal(t, 2, reserved)

	stored, err := e.reservations.FindById(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.CheckoutSessionID, stored.CheckoutSessionID)
}

func TestCreateBooking_Validation(t *testing.T) {
	e := newEnv(t)
	item := e.rentalItem(t, 5)
	svc := e.rentalService()

	past := booking(item, utils.DateKey(time.Now().AddDate(0, 0, -2)), 1)
	_, err := svc.CreateBooking(context.Background(), services.Requester{}, past)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	badInterval := booking(item, futureDate(1), 1)
	badInterval.Interval = "week"
	_, err = svc.CreateBooking(context.Background(), services.Requester{}, badInterval)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	noBlock := booking(item, futureDate(1), 1)
	noBlock.TimeBlock = ""
	_, err = svc.ConfirmCashBooking(context.Background(), services.Requester{}, noBlock)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	fullDayBlock := booking(item, futureDate(1), 1)
	fullDayBlock.Interval = string(db_models.IntervalFullDay)
	fullDayBlock.TimeBlock = "PM"
	_, err = svc.CreateBooking(context.Background(), services.Requester{}, fullDayBlock)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)

	reserved, err := e.reservations.Counter(context.Background(), item.ID, futureDate(1))
	require.NoError(t, err)
	assert.Zero(t, reserved)
	assert.Zero(t, e.count(t, &db_models.Reservation{}))

	unknown := booking(item, futureDate(1), 1)
	unknown.RentalItemID = uuid.NewString()
	_, err = svc.CreateBooking(context.Background(), services.Requester{}, unknown)
	assert.ErrorIs(t, err, utils.ErrRentalItemNotFound)
}

func TestCreateBooking_NeverOverbooks(t *testing.T) {
	e := newEnv(t)
	item := e.rentalItem(t, 5)
	date := futureDate(4)
	svc := e.rentalService()

	_, err := svc.ConfirmCashBooking(context.Background(), services.Requester{}, booking(item, date, 4))
	require.NoError(t, err)

	_, err = svc.CreateBooking(context.Background(), services.Requester{}, booking(item, date, 2))
	assert.ErrorIs(t, err, utils.ErrInsufficientInventory)

	_, err = svc.CreateBooking(context.Background(), services.Requester{}, booking(item, date, 1))
	require.NoError(t, err)

	reserved, err := e.reservations.Counter(context.Background(), item.ID, date)
	require.NoError(t, err)
	assert.Equal(t, 5, reserved)
}

func TestCreateBooking_CheckoutFailureReleasesHold(t *testing.T) {
	e := newEnv(t)
	item := e.rentalItem(t, 2)
	date := futureDate(2)
	e.gateway.FailOn["CreateCheckoutSession"] = true

	_, err := e.rentalService().CreateBooking(context.Background(), services.Requester{}, booking(item, date, 2))
	assert.ErrorIs(t, err, utils.ErrPaymentGateway)

	reserved, err := e.reservations.Counter(context.Background(), item.ID, date)
	require.NoError(t, err)
	assert.Zero(t, reserved)
}

func TestConfirmCashBooking_Notifies(t *testing.T) {
	e := newEnv(t)
	item := e.rentalItem(t, 2)

	resp, err := e.rentalService().ConfirmCashBooking(context.Background(), services.Requester{}, booking(item, futureDate(2), 1))
	require.NoError(t, err)
	assert.Equal(t, db_models.ReservationConfirmed, resp.Reservation.Status)
	assert.Equal(t, db_models.PaymentMethodCash, resp.Reservation.PaymentMethod)
	assert.Nil(t, resp.Reservation.HoldExpiresAt)

	e.notifier.Wait()
	assert.Len(t, e.mailer.To("pat@example.com"), 1)
	assert.Len(t, e.mailer.To(adminEmail), 1)
}

func TestCancelBooking(t *testing.T) {
	e := newEnv(t)
	item := e.rentalItem(t, 3)
	date := futureDate(6)
	owner := services.Requester{AccountID: uuid.New(), Username: "pat"}
	svc := e.rentalService()

	resp, err := svc.ConfirmCashBooking(context.Background(), owner, booking(item, date, 3))
	require.NoError(t, err)

	stranger := services.Requester{AccountID: uuid.New(), Username: "mallory"}
	err = svc.CancelBooking(context.Background(), stranger, resp.Reservation.ID)
	assert.ErrorIs(t, err, utils.ErrForbidden)

	require.NoError(t, svc.CancelBooking(context.Background(), owner, resp.Reservation.ID))
	reserved, err := e.reservations.Counter(context.Background(), item.ID, date)
	require.NoError(t, err)
	assert.Zero(t, reserved)

	// a second cancel finds nothing left to release
	require.NoError(t, svc.CancelBooking(context.Background(), services.Requester{IsAdmin: true}, resp.Reservation.ID))
	reserved, err = e.reservations.Counter(context.Background(), item.ID, date)
	require.NoError(t, err)
	assert.Zero(t, reserved)

	err = svc.CancelBooking(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, utils.ErrReservationNotFound)
}

func TestExpireHolds(t *testing.T) {
	e := newEnv(t)
	e.cfg.Rental.HoldTTL = time.Millisecond
	item := e.rentalItem(t, 2)
	date := futureDate(2)
	svc := e.rentalService()

	_, err := svc.CreateBooking(context.Background(), services.Requester{}, booking(item, date, 2))
	require.NoError(t, err)
	_, err = svc.ConfirmCashBooking(context.Background(), services.Requester{}, booking(item, futureDate(3), 1))
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	n, err := svc.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reserved, err := e.reservations.Counter(context.Background(), item.ID, date)
	require.NoError(t, err)
	assert.Zero(t, reserved)

	n, err = svc.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUnavailableDates(t *testing.T) {
	e := newEnv(t)
	item := e.rentalItem(t, 5)
	date := futureDate(8)
	svc := e.rentalService()

	_, err := svc.ConfirmCashBooking(context.Background(), services.Requester{}, booking(item, date, 4))
	require.NoError(t, err)

	resp, err := svc.UnavailableDates(context.Background(), item.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{date}, resp.Dates)

	resp, err = svc.UnavailableDates(context.Background(), item.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, resp.Dates)

	_, err = svc.UnavailableDates(context.Background(), item.ID, 0)
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}
