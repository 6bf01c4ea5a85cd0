package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/models/db_models"
	"clubhouse/internal/models/request_models"
	"clubhouse/internal/models/response_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/repositories"
	"clubhouse/pkg/utils"
)

// Requester is the authenticated caller of an operation.
type Requester struct {
	AccountID uuid.UUID
	Username  string
	IsAdmin   bool
}

type RentalService interface {
	ListItems(ctx context.Context) ([]db_models.RentalItem, error)
	ListLocations(ctx context.Context) ([]db_models.RentalLocation, error)
	UnavailableDates(ctx context.Context, itemID uuid.UUID, quantity int) (*response_models.UnavailableDatesResponse, error)
	// CreateBooking holds the units and starts a card checkout for them.
	CreateBooking(ctx context.Context, requester Requester, request request_models.BookingRequest) (*response_models.BookingResponse, error)
	// ConfirmCashBooking books units that will be paid for at pickup.
	ConfirmCashBooking(ctx context.Context, requester Requester, request request_models.BookingRequest) (*response_models.BookingResponse, error)
	CancelBooking(ctx context.Context, requester Requester, reservationID uuid.UUID) error
	ListMyBookings(ctx context.Context, requester Requester) ([]db_models.Reservation, error)
	// ExpireHolds releases card bookings whose checkout never completed.
	ExpireHolds(ctx context.Context) (int, error)
}

type rentalService struct {
	catalogRepo     repositories.RentalCatalogRepository
	reservationRepo repositories.ReservationRepository
	gateway         payments.Gateway
	notifier        NotificationService
	holdTTL         time.Duration
	baseURL         string
	log             *zap.Logger
	now             func() time.Time
}

func NewRentalService(
	catalogRepo repositories.RentalCatalogRepository,
	reservationRepo repositories.ReservationRepository,
	gateway payments.Gateway,
	notifier NotificationService,
	cfg *config.Config,
	log *zap.Logger,
) RentalService {
	holdTTL := cfg.Rental.HoldTTL
	if holdTTL <= 0 {
		holdTTL = 30 * time.Minute
	}
	return &rentalService{
		catalogRepo:     catalogRepo,
		reservationRepo: reservationRepo,
		gateway:         gateway,
		notifier:        notifier,
		holdTTL:         holdTTL,
		baseURL:         strings.TrimRight(cfg.Server.BaseURL, "/"),
		log:             log.Named("rentals"),
		now:             time.Now,
	}
}

func (r *rentalService) ListItems(ctx context.Context) ([]db_models.RentalItem, error) {
	items, err := r.catalogRepo.ListItems(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list rental items: %w", utils.ErrDatabaseError)
	}
	return items, nil
}

func (r *rentalService) ListLocations(ctx context.Context) ([]db_models.RentalLocation, error) {
	locations, err := r.catalogRepo.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rental locations: %w", utils.ErrDatabaseError)
	}
	return locations, nil
}

func (r *rentalService) activeItem(ctx context.Context, id uuid.UUID) (*db_models.RentalItem, error) {
	item, err := r.catalogRepo.FindItemById(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup rental item: %w", utils.ErrDatabaseError)
	}
	if item == nil || !item.IsActive {
		return nil, utils.ErrRentalItemNotFound
	}
	return item, nil
}

func (r *rentalService) UnavailableDates(ctx context.Context, itemID uuid.UUID, quantity int) (*response_models.UnavailableDatesResponse, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity %d: %w", quantity, utils.ErrInvalidInput)
	}
	item, err := r.activeItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	reserved, err := r.reservationRepo.ReservedByDate(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("sum reservations: %w", utils.ErrDatabaseError)
	}
	return &response_models.UnavailableDatesResponse{
		RentalItemID: item.ID,
		Quantity:     quantity,
		Dates:        UnavailableDates(item.QuantityAvailable, reserved, quantity),
	}, nil
}

// newReservation validates the request and prices it. The caller sets status and payment fields.
func (r *rentalService) newReservation(ctx context.Context, requester Requester, request request_models.BookingRequest) (*db_models.Reservation, *db_models.RentalItem, error) {
	itemID, err := uuid.Parse(request.RentalItemID)
	if err != nil {
		return nil, nil, fmt.Errorf("rental item id: %w", utils.ErrInvalidInput)
	}
	date, err := utils.ParseDate(request.Date)
	if err != nil {
		return nil, nil, fmt.Errorf("date %q: %w", request.Date, utils.ErrInvalidInput)
	}
	if date < utils.DateKey(r.now()) {
		return nil, nil, fmt.Errorf("date %s is in the past: %w", date, utils.ErrInvalidInput)
	}
	interval := db_models.RentalInterval(request.Interval)
	if interval != db_models.IntervalHalfDay && interval != db_models.IntervalFullDay {
		return nil, nil, fmt.Errorf("interval %q: %w", request.Interval, utils.ErrInvalidInput)
	}
	// half-day rentals go out in the morning or the afternoon; full days carry no block
	switch {
	case interval == db_models.IntervalHalfDay && request.TimeBlock != "AM" && request.TimeBlock != "PM":
		return nil, nil, fmt.Errorf("half-day time block %q: %w", request.TimeBlock, utils.ErrInvalidInput)
	case interval == db_models.IntervalFullDay && request.TimeBlock != "":
		return nil, nil, fmt.Errorf("full-day time block %q: %w", request.TimeBlock, utils.ErrInvalidInput)
	}
	if request.Quantity < 1 {
		return nil, nil, fmt.Errorf("quantity %d: %w", request.Quantity, utils.ErrInvalidInput)
	}

	item, err := r.activeItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	reservation := &db_models.Reservation{
		Name:          request.Name,
		Email:         request.Email,
		Phone:         request.Phone,
		RentalItemID:  item.ID,
		Date:          date,
		Interval:      interval,
		TimeBlock:     request.TimeBlock,
		Quantity:      request.Quantity,
		Total:         item.Price(interval) * int64(request.Quantity),
		EquipmentType: item.Type,
	}
	if requester.AccountID != uuid.Nil {
		id := requester.AccountID
		reservation.AccountID = &id
	}

	if request.LocationID != "" {
		locationID, err := uuid.Parse(request.LocationID)
		if err != nil {
			return nil, nil, fmt.Errorf("location id: %w", utils.ErrInvalidInput)
		}
		location, err := r.catalogRepo.FindLocationById(ctx, locationID)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup location: %w", utils.ErrDatabaseError)
		}
		if location == nil {
			return nil, nil, fmt.Errorf("location %s: %w", locationID, utils.ErrInvalidInput)
		}
		reservation.LocationID = &location.ID
		reservation.LocationName = location.Name
	}
	return reservation, item, nil
}

func (r *rentalService) hold(ctx context.Context, reservation *db_models.Reservation, item *db_models.RentalItem) error {
	err := r.reservationRepo.CreateWithHold(ctx, reservation, item.QuantityAvailable)
	if errors.Is(err, utils.ErrInsufficientInventory) || errors.Is(err, utils.ErrInvalidInput) {
		return err
	}
	if err != nil {
		return fmt.Errorf("reserve %s on %s: %w", item.Name, reservation.Date, utils.ErrDatabaseError)
	}
	return nil
}

func (r *rentalService) CreateBooking(ctx context.Context, requester Requester, request request_models.BookingRequest) (*response_models.BookingResponse, error) {
	reservation, item, err := r.newReservation(ctx, requester, request)
	if err != nil {
		return nil, err
	}
	expires := r.now().Add(r.holdTTL)
	reservation.Status = db_models.ReservationPending
	reservation.PaymentMethod = db_models.PaymentMethodStripe
	reservation.PaymentStatus = db_models.PaymentStatusUnpaid
	reservation.HoldExpiresAt = &expires

	if err := r.hold(ctx, reservation, item); err != nil {
		return nil, err
	}

	session, err := r.gateway.CreateCheckoutSession(ctx, r.checkoutFor(reservation, item))
	if err != nil {
		if _, relErr := r.reservationRepo.Release(ctx, reservation.ID, db_models.ReservationCancelled); relErr != nil {
			r.log.Error("release hold after checkout failure", zap.String("reservation_id", reservation.ID.String()), zap.Error(relErr))
		}
		return nil, fmt.Errorf("create rental checkout: %v: %w", err, utils.ErrPaymentGateway)
	}
	if err := r.reservationRepo.SetCheckoutSession(ctx, reservation.ID, session.ID); err != nil {
		r.log.Warn("store checkout session", zap.String("reservation_id", reservation.ID.String()), zap.Error(err))
	}
	reservation.CheckoutSessionID = session.ID

	r.log.Info("rental hold created",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("date", reservation.Date),
		zap.Int("quantity", reservation.Quantity),
		zap.String("trace_id", utils.TraceIDFromContext(ctx)),
	)
	return &response_models.BookingResponse{Reservation: *reservation, CheckoutURL: session.URL}, nil
}

func (r *rentalService) checkoutFor(reservation *db_models.Reservation, item *db_models.RentalItem) payments.CheckoutRequest {
	priceID := item.StripePriceIDFullDay
	if reservation.Interval == db_models.IntervalHalfDay {
		priceID = item.StripePriceIDHalfDay
	}
	id := reservation.ID.String()
	return payments.CheckoutRequest{
		Mode:              payments.CheckoutPayment,
		CustomerEmail:     reservation.Email,
		ClientReferenceID: id,
		LineItems: []payments.LineItem{{
			PriceID:    priceID,
			Name:       fmt.Sprintf("%s (%s, %s)", item.Name, reservation.Interval, reservation.Date),
			UnitAmount: item.Price(reservation.Interval),
			Quantity:   int64(reservation.Quantity),
		}},
		SuccessURL: r.baseURL + "/rentals/success?reservation_id=" + id,
		CancelURL:  r.baseURL + "/rentals/cancel?reservation_id=" + id,
		Metadata:   map[string]string{"reservation_id": id},
	}
}

func (r *rentalService) ConfirmCashBooking(ctx context.Context, requester Requester, request request_models.BookingRequest) (*response_models.BookingResponse, error) {
	reservation, item, err := r.newReservation(ctx, requester, request)
	if err != nil {
		return nil, err
	}
	reservation.Status = db_models.ReservationConfirmed
	reservation.PaymentMethod = db_models.PaymentMethodCash
	reservation.PaymentStatus = db_models.PaymentStatusUnpaid

	if err := r.hold(ctx, reservation, item); err != nil {
		return nil, err
	}

	r.notifier.ReservationConfirmed(ctx, reservation, item)
	return &response_models.BookingResponse{Reservation: *reservation}, nil
}

func (r *rentalService) CancelBooking(ctx context.Context, requester Requester, reservationID uuid.UUID) error {
	reservation, err := r.reservationRepo.FindById(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("lookup reservation: %w", utils.ErrDatabaseError)
	}
	if reservation == nil {
		return utils.ErrReservationNotFound
	}
	owner := reservation.AccountID != nil && *reservation.AccountID == requester.AccountID
	if !owner && !requester.IsAdmin {
		return utils.ErrForbidden
	}

	if _, err := r.reservationRepo.Release(ctx, reservationID, db_models.ReservationCancelled); err != nil {
		return err
	}
	return nil
}

func (r *rentalService) ListMyBookings(ctx context.Context, requester Requester) ([]db_models.Reservation, error) {
	list, err := r.reservationRepo.ListByAccount(ctx, requester.AccountID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", utils.ErrDatabaseError)
	}
	return list, nil
}

func (r *rentalService) ExpireHolds(ctx context.Context) (int, error) {
	expired, err := r.reservationRepo.ListExpiredHolds(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("list expired holds: %w", utils.ErrDatabaseError)
	}

	released := 0
	for _, res := range expired {
		_, err := r.reservationRepo.Release(ctx, res.ID, db_models.ReservationExpired)
		if errors.Is(err, utils.ErrReservationNotFound) {
			continue
		}
		if err != nil {
			return released, fmt.Errorf("expire reservation %s: %w", res.ID, err)
		}
		released++
	}
	if released > 0 {
		r.log.Info("expired rental holds released", zap.Int("count", released))
	}
	return released, nil
}
