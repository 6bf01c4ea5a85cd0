package utils

import "errors"

var (
	ErrInvalidPage     = errors.New("invalid page parameter")
	ErrInvalidPageSize = errors.New("invalid page size parameter")
	ErrDatabaseError   = errors.New("database error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("rate limit exceeded")

	// accounts
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("username or email already exists")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrPaymentRequired     = errors.New("payment required for the current month")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrWaiverImmutable     = errors.New("waiver information cannot be modified once accepted")
	ErrFounderImmutable    = errors.New("founder account type cannot be assigned or changed")
	ErrPendingRegistration = errors.New("pending registration not found")

	// payments
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrPaymentGateway          = errors.New("payment processor error")
	ErrReconcileInProgress     = errors.New("reconciliation already running")

	// rentals
	ErrRentalItemNotFound    = errors.New("rental item not found")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrInsufficientInventory = errors.New("not enough equipment available for the selected date")

	// events and forum
	ErrEventNotFound = errors.New("event not found")
	ErrAlreadyRSVPed = errors.New("already RSVPed to this event")
	ErrRSVPNotFound  = errors.New("rsvp not found")
	ErrEventFull     = errors.New("event has reached its RSVP limit")
	ErrPostNotFound  = errors.New("post not found")
)
