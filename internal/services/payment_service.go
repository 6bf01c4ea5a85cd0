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
	"clubhouse/internal/models/response_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/repositories"
	"clubhouse/pkg/utils"
)

// PaymentService starts and abandons membership checkouts for pending registrations.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, pendingID uuid.UUID) (*response_models.CheckoutResponse, error)
	CancelCheckout(ctx context.Context, pendingID uuid.UUID) error
}

type paymentService struct {
	pendingRepo repositories.PendingRegistrationRepository
	gateway     payments.Gateway
	stripe      config.StripeConfig
	baseURL     string
	log         *zap.Logger
}

func NewPaymentService(
	pendingRepo repositories.PendingRegistrationRepository,
	gateway payments.Gateway,
	cfg *config.Config,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		pendingRepo: pendingRepo,
		gateway:     gateway,
		stripe:      cfg.Stripe,
		baseURL:     strings.TrimRight(cfg.Server.BaseURL, "/"),
		log:         log.Named("payments"),
	}
}

var errPriceNotConfigured = errors.New("no price configured for membership")

func (p *paymentService) priceFor(m db_models.Membership) (string, error) {
	var id string
	switch m {
	case db_models.MembershipMonthly:
		id = p.stripe.MonthlyPriceID
	case db_models.MembershipAnnual:
		id = p.stripe.AnnualPriceID
	}
	if id == "" {
		return "", fmt.Errorf("%w %q: %w", errPriceNotConfigured, m, utils.ErrPaymentGateway)
	}
	return id, nil
}

func (p *paymentService) CreateCheckoutSession(ctx context.Context, pendingID uuid.UUID) (*response_models.CheckoutResponse, error) {
	pending, err := p.pendingRepo.FindById(ctx, pendingID)
	if err != nil {
		return nil, fmt.Errorf("lookup pending registration: %w", utils.ErrDatabaseError)
	}
	if pending == nil || pending.Expired(time.Now()) {
		return nil, utils.ErrPendingRegistration
	}

	priceID, err := p.priceFor(pending.Membership)
	if err != nil {
		return nil, err
	}

	session, err := p.gateway.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		Mode:                payments.CheckoutSubscription,
		CustomerID:          pending.StripeCustomerID,
		ClientReferenceID:   pending.ID.String(),
		LineItems:           []payments.LineItem{{PriceID: priceID, Quantity: 1}},
		SuccessURL:          p.baseURL + "/signup/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:           p.baseURL + "/signup/cancel?pending_id=" + pending.ID.String(),
		AllowPromotionCodes: true,
		Metadata: map[string]string{
			"pending_registration_id": pending.ID.String(),
			"username":                pending.Username,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %v: %w", err, utils.ErrPaymentGateway)
	}

	p.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("username", pending.Username),
		zap.String("trace_id", utils.TraceIDFromContext(ctx)),
	)
	return &response_models.CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

func (p *paymentService) CancelCheckout(ctx context.Context, pendingID uuid.UUID) error {
	deleted, err := p.pendingRepo.Delete(ctx, pendingID)
	if err != nil {
		return fmt.Errorf("delete pending registration: %w", utils.ErrDatabaseError)
	}
	if !deleted {
		return utils.ErrPendingRegistration
	}
	return nil
}
