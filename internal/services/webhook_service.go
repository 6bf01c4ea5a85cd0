package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"clubhouse/internal/config"
	"clubhouse/internal/models/db_models"
	"clubhouse/internal/payments"
	"clubhouse/internal/repositories"
	"clubhouse/pkg/utils"
)

const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeUnmatched = "unmatched"
	OutcomeNotFound  = "not_found"
	OutcomeDuplicate = "duplicate"

	webhookActor = "stripe-webhook"

	reasonInvoiceFailed    = "Invoice payment failed"
	reasonSubscriptionPast = "Subscription past due"
	reasonDisputePrefix    = "Payment disputed: "
)

var tracer = otel.Tracer("clubhouse/services")

// WebhookResult tells the caller what happened to a verified event. Every outcome is acknowledged.
type WebhookResult struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Outcome string `json:"outcome"`
}

type WebhookService interface {
	Handle(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)
}

type eventHandler func(ctx context.Context, ev *payments.Event) (string, error)

type webhookService struct {
	accountRepo     repositories.AccountRepository
	pendingRepo     repositories.PendingRegistrationRepository
	failureRepo     repositories.PaymentFailureRepository
	reservationRepo repositories.ReservationRepository
	catalogRepo     repositories.RentalCatalogRepository
	gateway         payments.Gateway
	notifier        NotificationService
	founder         string
	log             *zap.Logger
	now             func() time.Time

	handlers map[string]eventHandler
}

func NewWebhookService(
	accountRepo repositories.AccountRepository,
	pendingRepo repositories.PendingRegistrationRepository,
	failureRepo repositories.PaymentFailureRepository,
	reservationRepo repositories.ReservationRepository,
	catalogRepo repositories.RentalCatalogRepository,
	gateway payments.Gateway,
	notifier NotificationService,
	cfg *config.Config,
	log *zap.Logger,
) WebhookService {
	w := &webhookService{
		accountRepo:     accountRepo,
		pendingRepo:     pendingRepo,
		failureRepo:     failureRepo,
		reservationRepo: reservationRepo,
		catalogRepo:     catalogRepo,
		gateway:         gateway,
		notifier:        notifier,
		founder:         strings.ToLower(strings.TrimSpace(cfg.Club.FounderUsername)),
		log:             log.Named("webhook"),
		now:             time.Now,
	}
	w.handlers = map[string]eventHandler{
		"checkout.session.completed":    w.checkoutCompleted,
		"invoice.payment_failed":        w.invoiceFailed,
		"invoice.payment_succeeded":     w.invoiceSucceeded,
		"customer.subscription.deleted": w.subscriptionDeleted,
		"customer.subscription.updated": w.subscriptionUpdated,
		"payment_intent.payment_failed": w.paymentIntentFailed,
		"charge.failed":                 w.chargeFailed,
		"charge.dispute.created":        w.disputeCreated,
	}
	return w
}

// Handle verifies the signature before anything else is looked at.
func (w *webhookService) Handle(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ev, err := w.gateway.ConstructEvent(payload, signature)
	if err != nil {
		w.log.Warn("webhook signature verification failed", zap.Error(err))
		return nil, fmt.Errorf("%v: %w", err, utils.ErrInvalidWebhookSignature)
	}

	ctx, span := tracer.Start(ctx, "webhook.handle")
	defer span.End()
	span.SetAttributes(attribute.String("event.type", ev.Type), attribute.String("event.id", ev.ID))

	ctx = repositories.WithAuditActor(ctx, repositories.AuditActor{ModifiedBy: webhookActor})
	logger := w.log.With(
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("trace_id", utils.TraceIDFromContext(ctx)),
	)

	result := &WebhookResult{EventID: ev.ID, Type: ev.Type, Outcome: OutcomeIgnored}
	handler, ok := w.handlers[ev.Type]
	if !ok {
		logger.Debug("event type ignored")
		return result, nil
	}

	outcome, err := handler(ctx, ev)
	if err != nil {
		span.RecordError(err)
		logger.Error("webhook processing failed", zap.Error(err))
		return nil, err
	}
	result.Outcome = outcome
	logger.Info("webhook handled", zap.String("outcome", outcome))
	return result, nil
}

func decodeObject[T any](ev *payments.Event) (*T, error) {
	var obj T
	if err := json.Unmarshal(ev.Object, &obj); err != nil {
		return nil, fmt.Errorf("decode %s object: %v: %w", ev.Type, err, utils.ErrInvalidInput)
	}
	return &obj, nil
}

func customerIDOf(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func (w *webhookService) checkoutCompleted(ctx context.Context, ev *payments.Event) (string, error) {
	session, err := decodeObject[stripe.CheckoutSession](ev)
	if err != nil {
		return "", err
	}
	if id := session.Metadata["reservation_id"]; id != "" {
		return w.reservationPaid(ctx, id)
	}

	email := session.CustomerEmail
	if email == "" && session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
	}

	pending, err := w.findPending(ctx, session.ClientReferenceID, email)
	if err != nil {
		return "", err
	}
	if pending == nil {
		w.log.Warn("no pending registration for checkout",
			zap.String("client_reference_id", session.ClientReferenceID),
			zap.String("email", email),
		)
		return OutcomeNotFound, nil
	}

	now := w.now()
	if pending.Expired(now) {
		w.log.Warn("pending registration expired before checkout completed",
			zap.String("username", pending.Username),
			zap.Time("expired_at", pending.ExpiresAt),
		)
		return OutcomeNotFound, nil
	}

	account := w.accountFromPending(pending, customerIDOf(session.Customer), now)
	if err := w.accountRepo.CreateFromPending(ctx, account, pending.ID); err != nil {
		if errors.Is(err, utils.ErrPendingRegistration) {
			return OutcomeNotFound, nil
		}
		return "", fmt.Errorf("promote %s: %w", pending.Username, err)
	}

	w.notifier.Welcome(ctx, account)
	w.notifier.NewMemberAdmin(ctx, account)
	return OutcomeProcessed, nil
}

func (w *webhookService) findPending(ctx context.Context, reference, email string) (*db_models.PendingRegistration, error) {
	if id, err := uuid.Parse(reference); err == nil {
		pending, err := w.pendingRepo.FindById(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup pending %s: %w", id, utils.ErrDatabaseError)
		}
		if pending != nil {
			return pending, nil
		}
	}
	if email == "" {
		return nil, nil
	}
	pending, err := w.pendingRepo.FindLatestByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup pending by email: %w", utils.ErrDatabaseError)
	}
	return pending, nil
}

func (w *webhookService) accountFromPending(p *db_models.PendingRegistration, customerID string, now time.Time) *db_models.Account {
	if customerID == "" {
		customerID = p.StripeCustomerID
	}
	accountType := db_models.AccountTypeMember
	if w.founder != "" && strings.EqualFold(p.Username, w.founder) {
		accountType = db_models.AccountTypeFounder
	}
	start := now
	return &db_models.Account{
		Username:            p.Username,
		Email:               p.Email,
		PasswordHash:        p.PasswordHash,
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		Phone:               p.Phone,
		Role:                db_models.RoleUser,
		AccountType:         accountType,
		Status:              db_models.StatusActive,
		Membership:          p.Membership,
		StripeCustomerID:    customerID,
		SubscriptionStart:   &start,
		SubscriptionEnd:     p.Membership.PeriodEnd(now),
		PaidForCurrentMonth: true,
		Waiver:              p.Waiver,
	}
}

func (w *webhookService) reservationPaid(ctx context.Context, rawID string) (string, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		w.log.Warn("checkout carries a malformed reservation id", zap.String("reservation_id", rawID))
		return OutcomeNotFound, nil
	}

	reservation, err := w.reservationRepo.Confirm(ctx, id, db_models.PaymentStatusPaid)
	if errors.Is(err, utils.ErrReservationNotFound) {
		// the hold lapsed or a duplicate delivery already confirmed it
		w.log.Warn("paid reservation is no longer pending", zap.String("reservation_id", rawID))
		return OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("confirm reservation %s: %w", id, err)
	}

	item, err := w.catalogRepo.FindItemById(ctx, reservation.RentalItemID)
	if err != nil {
		return "", fmt.Errorf("lookup rental item: %w", utils.ErrDatabaseError)
	}
	if item != nil {
		w.notifier.ReservationConfirmed(ctx, reservation, item)
	}
	return OutcomeProcessed, nil
}

// accountFor resolves the customer to an account; nil means the event is unmatched.
func (w *webhookService) accountFor(ctx context.Context, customerID string) (*db_models.Account, error) {
	account, err := w.accountRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("lookup customer %s: %w", customerID, utils.ErrDatabaseError)
	}
	if account == nil {
		w.log.Warn("no account for customer", zap.String("customer_id", customerID))
	}
	return account, nil
}

type failureInput struct {
	ExternalID string
	Reason     string
	Amount     float64
	Source     string
	Raw        json.RawMessage
}

// recordFailure appends to the failure history and pauses the account. A failure already on
// record changes nothing.
func (w *webhookService) recordFailure(ctx context.Context, account *db_models.Account, in failureInput) (string, error) {
	now := w.now()
	created, err := w.failureRepo.Record(ctx, &db_models.PaymentFailure{
		AccountID:     account.ID,
		StripeEventID: in.ExternalID,
		OccurredAt:    now,
		Reason:        in.Reason,
		Amount:        in.Amount,
		Source:        in.Source,
		Raw:           []byte(in.Raw),
	})
	if err != nil {
		return "", fmt.Errorf("record payment failure: %w", utils.ErrDatabaseError)
	}
	if !created {
		return OutcomeDuplicate, nil
	}

	status := db_models.StatusPaused
	if account.Status == db_models.StatusSuspended {
		status = db_models.StatusSuspended
	}
	changes := map[string]interface{}{
		"status":                       status,
		"paid_for_current_month":       false,
		"last_failure_at":              now,
		"last_failure_reason":          in.Reason,
		"last_failure_stripe_event_id": in.ExternalID,
		"last_failure_amount":          in.Amount,
		"last_failure_attempts":        account.LastPaymentFailure.Attempts + 1,
		"account_pause_reason":         in.Reason,
		"account_paused_at":            now,
	}
	if err := w.accountRepo.UpdateFields(ctx, account.ID, changes); err != nil {
		return "", fmt.Errorf("pause %s: %w", account.Username, err)
	}

	w.notifier.AccountPaused(ctx, account, in.Reason)
	return OutcomeProcessed, nil
}

func (w *webhookService) invoiceFailed(ctx context.Context, ev *payments.Event) (string, error) {
	inv, err := decodeObject[stripe.Invoice](ev)
	if err != nil {
		return "", err
	}
	account, err := w.accountFor(ctx, customerIDOf(inv.Customer))
	if err != nil || account == nil {
		return OutcomeUnmatched, err
	}

	externalID := inv.ID
	if inv.Charge != nil && inv.Charge.ID != "" {
		externalID = inv.Charge.ID
	}
	reason := reasonInvoiceFailed
	if inv.LastFinalizationError != nil && inv.LastFinalizationError.Msg != "" {
		reason = inv.LastFinalizationError.Msg
	}
	return w.recordFailure(ctx, account, failureInput{
		ExternalID: externalID,
		Reason:     reason,
		Amount:     float64(inv.AmountDue) / 100,
		Source:     ev.Type,
		Raw:        ev.Object,
	})
}

func invoicePeriod(inv *stripe.Invoice) (*time.Time, *time.Time) {
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line != nil && line.Period != nil && line.Period.End > 0 {
				return unixPtr(line.Period.Start), unixPtr(line.Period.End)
			}
		}
	}
	return unixPtr(inv.PeriodStart), unixPtr(inv.PeriodEnd)
}

func (w *webhookService) invoiceSucceeded(ctx context.Context, ev *payments.Event) (string, error) {
	inv, err := decodeObject[stripe.Invoice](ev)
	if err != nil {
		return "", err
	}
	account, err := w.accountFor(ctx, customerIDOf(inv.Customer))
	if err != nil || account == nil {
		return OutcomeUnmatched, err
	}

	start, end := invoicePeriod(inv)
	return w.markPaid(ctx, account, start, end)
}

// markPaid reactivates the account for a paid period. Suspension is an admin decision and stays.
func (w *webhookService) markPaid(ctx context.Context, account *db_models.Account, start, end *time.Time) (string, error) {
	changes := map[string]interface{}{"paid_for_current_month": true}
	if start != nil {
		changes["subscription_start"] = *start
	}
	if end != nil {
		changes["subscription_end"] = *end
	}
	if account.Status != db_models.StatusSuspended {
		changes["status"] = db_models.StatusActive
		changes["account_pause_reason"] = ""
		changes["account_paused_at"] = nil
	}
	if err := w.accountRepo.UpdateFields(ctx, account.ID, changes); err != nil {
		return "", fmt.Errorf("activate %s: %w", account.Username, err)
	}
	return OutcomeProcessed, nil
}

func (w *webhookService) subscriptionDeleted(ctx context.Context, ev *payments.Event) (string, error) {
	sub, err := decodeObject[stripe.Subscription](ev)
	if err != nil {
		return "", err
	}
	account, err := w.accountFor(ctx, customerIDOf(sub.Customer))
	if err != nil || account == nil {
		return OutcomeUnmatched, err
	}

	err = w.accountRepo.UpdateFields(ctx, account.ID, map[string]interface{}{
		"status":                 db_models.StatusExpired,
		"paid_for_current_month": false,
	})
	if err != nil {
		return "", fmt.Errorf("expire %s: %w", account.Username, err)
	}
	return OutcomeProcessed, nil
}

func (w *webhookService) subscriptionUpdated(ctx context.Context, ev *payments.Event) (string, error) {
	sub, err := decodeObject[stripe.Subscription](ev)
	if err != nil {
		return "", err
	}

	switch sub.Status {
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusActive:
	default:
		return OutcomeIgnored, nil
	}

	account, err := w.accountFor(ctx, customerIDOf(sub.Customer))
	if err != nil || account == nil {
		return OutcomeUnmatched, err
	}

	if sub.Status == stripe.SubscriptionStatusActive {
		return w.markPaid(ctx, account, unixPtr(sub.CurrentPeriodStart), unixPtr(sub.CurrentPeriodEnd))
	}

	externalID := sub.ID + ":" + fmt.Sprint(sub.CurrentPeriodEnd)
	if sub.LatestInvoice != nil && sub.LatestInvoice.ID != "" {
		externalID = sub.LatestInvoice.ID
	}
	return w.recordFailure(ctx, account, failureInput{
		ExternalID: externalID,
		Reason:     reasonSubscriptionPast,
		Source:     ev.Type,
		Raw:        ev.Object,
	})
}

func (w *webhookService) paymentIntentFailed(ctx context.Context, ev *payments.Event) (string, error) {
	pi, err := decodeObject[stripe.PaymentIntent](ev)
	if err != nil {
		return "", err
	}
	account, err := w.accountFor(ctx, customerIDOf(pi.Customer))
	if err != nil || account == nil {
		return OutcomeUnmatched, err
	}

	reason := ""
	if pi.LastPaymentError != nil {
		reason = pi.LastPaymentError.Msg
	}
	return w.recordFailure(ctx, account, failureInput{
		ExternalID: pi.ID,
		Reason:     failureReason(reason),
		Amount:     float64(pi.Amount) / 100,
		Source:     ev.Type,
		Raw:        ev.Object,
	})
}

func (w *webhookService) chargeFailed(ctx context.Context, ev *payments.Event) (string, error) {
	ch, err := decodeObject[stripe.Charge](ev)
	if err != nil {
		return "", err
	}
	account, err := w.accountFor(ctx, customerIDOf(ch.Customer))
	if err != nil || account == nil {
		return OutcomeUnmatched, err
	}

	return w.recordFailure(ctx, account, failureInput{
		ExternalID: ch.ID,
		Reason:     failureReason(ch.FailureMessage),
		Amount:     float64(ch.Amount) / 100,
		Source:     ev.Type,
		Raw:        ev.Object,
	})
}

// disputeCreated finds the customer through the disputed charge.
func (w *webhookService) disputeCreated(ctx context.Context, ev *payments.Event) (string, error) {
	dispute, err := decodeObject[stripe.Dispute](ev)
	if err != nil {
		return "", err
	}
	if dispute.Charge == nil || dispute.Charge.ID == "" {
		w.log.Warn("dispute without charge", zap.String("dispute_id", dispute.ID))
		return OutcomeUnmatched, nil
	}

	charge, err := w.gateway.GetCharge(ctx, dispute.Charge.ID)
	if err != nil {
		return "", fmt.Errorf("get disputed charge: %v: %w", err, utils.ErrPaymentGateway)
	}
	account, err := w.accountFor(ctx, charge.CustomerID)
	if err != nil || account == nil {
		return OutcomeUnmatched, err
	}

	reason := reasonDisputePrefix + string(dispute.Reason)
	amount := float64(dispute.Amount) / 100
	outcome, err := w.recordFailure(ctx, account, failureInput{
		ExternalID: dispute.ID,
		Reason:     reason,
		Amount:     amount,
		Source:     ev.Type,
		Raw:        ev.Object,
	})
	if err != nil {
		return "", err
	}
	if outcome == OutcomeProcessed {
		w.notifier.PaymentDispute(ctx, account, reason, amount)
	}
	return outcome, nil
}

func failureReason(msg string) string {
	if msg == "" {
		return payments.DefaultFailureReason
	}
	return msg
}
