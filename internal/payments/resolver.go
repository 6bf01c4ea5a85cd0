package payments

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	StatusActive       = "active"
	StatusTrialing     = "trialing"
	StatusNone         = "none"
	StatusPaymentBased = "payment_based"
	StatusError        = "error"
)

const (
	historyLimit         = 20
	duplicateCustomerMax = 10
	intentDedupWindow    = 60 * time.Second
	monthlyWindow        = 30 * 24 * time.Hour
	annualWindow         = 365 * 24 * time.Hour
)

// DefaultFailureReason stands in when the processor gives no failure message.
const DefaultFailureReason = "Payment failed"

var failedIntentStatuses = map[string]bool{
	"requires_payment_method": true,
	"canceled":                true,
	"requires_action":         true,
}

type FailureDescriptor struct {
	Date          time.Time `json:"date"`
	Reason        string    `json:"reason"`
	StripeEventID string    `json:"stripe_event_id"`
	Amount        float64   `json:"amount"` // dollars
}

// StatusDescriptor is the processor's view of one customer's payment standing.
type StatusDescriptor struct {
	HasActiveSubscription bool               `json:"has_active_subscription"`
	SubscriptionStatus    string             `json:"subscription_status"`
	CurrentPeriodEnd      *time.Time         `json:"current_period_end,omitempty"`
	PaymentBasedActive    bool               `json:"payment_based_active"`
	LastPaymentDate       *time.Time         `json:"last_payment_date,omitempty"`
	HasPaymentFailures    bool               `json:"has_payment_failures"`
	LastPaymentFailure    *FailureDescriptor `json:"last_payment_failure,omitempty"`
	Error                 string             `json:"error,omitempty"`
}

// Unknown reports whether the resolution failed and the caller must not act on it.
func (d StatusDescriptor) Unknown() bool {
	return d.SubscriptionStatus == StatusError
}

// ShouldBeActive is true for a live subscription or a payment inside its window.
func (d StatusDescriptor) ShouldBeActive() bool {
	return d.HasActiveSubscription || d.PaymentBasedActive
}

func (d StatusDescriptor) ShouldBePaid() bool {
	return d.HasActiveSubscription && d.SubscriptionStatus == StatusActive
}

// AnnualMatcher decides whether one-off payments of a customer cover a year.
type AnnualMatcher interface {
	Matches(email, name string) bool
}

type Resolver struct {
	gateway Gateway
	annual  AnnualMatcher
	log     *zap.Logger
	now     func() time.Time
}

func NewResolver(gateway Gateway, annual AnnualMatcher, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		gateway: gateway,
		annual:  annual,
		log:     log,
		now:     time.Now,
	}
}

// WithClock replaces the resolver's time source.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

type paymentRecord struct {
	id   string
	date time.Time
}

type failureRecord struct {
	id     string
	date   time.Time
	reason string
	amount int64
}

// Resolve derives the payment standing of a customer. Gateway errors never escape: they yield
// SubscriptionStatus "error" with Error set.
func (r *Resolver) Resolve(ctx context.Context, customerID string) StatusDescriptor {
	ctx, span := tracer.Start(ctx, "payments.Resolve")
	span.SetAttributes(attribute.String("customer.id", customerID))
	defer span.End()

	desc, err := r.resolve(ctx, customerID)
	if err != nil {
		r.log.Error("resolve payment status", zap.String("customer_id", customerID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StatusDescriptor{SubscriptionStatus: StatusError, Error: err.Error()}
	}
	span.SetAttributes(attribute.String("payment.status", desc.SubscriptionStatus))
	return desc
}

func (r *Resolver) resolve(ctx context.Context, customerID string) (StatusDescriptor, error) {
	subs, err := r.gateway.ListSubscriptions(ctx, customerID)
	if err != nil {
		return StatusDescriptor{}, err
	}
	for _, s := range subs {
		if s.Status == StatusActive || s.Status == StatusTrialing {
			end := s.CurrentPeriodEnd
			return StatusDescriptor{
				HasActiveSubscription: true,
				SubscriptionStatus:    s.Status,
				CurrentPeriodEnd:      &end,
			}, nil
		}
	}

	customer, err := r.gateway.GetCustomer(ctx, customerID)
	if err != nil {
		return StatusDescriptor{}, err
	}
	charges, err := r.gateway.ListCharges(ctx, customerID, historyLimit)
	if err != nil {
		return StatusDescriptor{}, err
	}
	intents, err := r.gateway.ListPaymentIntents(ctx, customerID, historyLimit)
	if err != nil {
		return StatusDescriptor{}, err
	}

	// the same person sometimes ends up with a second customer record
	if len(charges) == 0 && customer.Email != "" {
		others, err := r.gateway.ListCustomersByEmail(ctx, customer.Email, duplicateCustomerMax)
		if err != nil {
			return StatusDescriptor{}, err
		}
		for _, other := range others {
			if other.ID == customerID {
				continue
			}
			moreCharges, err := r.gateway.ListCharges(ctx, other.ID, historyLimit)
			if err != nil {
				return StatusDescriptor{}, err
			}
			moreIntents, err := r.gateway.ListPaymentIntents(ctx, other.ID, historyLimit)
			if err != nil {
				return StatusDescriptor{}, err
			}
			charges = append(charges, moreCharges...)
			intents = append(intents, moreIntents...)
		}
	}

	payments, failures := classify(charges, intents)

	desc := StatusDescriptor{SubscriptionStatus: StatusNone}
	if len(failures) > 0 {
		latest := failures[0]
		desc.HasPaymentFailures = true
		desc.LastPaymentFailure = &FailureDescriptor{
			Date:          latest.date,
			Reason:        latest.reason,
			StripeEventID: latest.id,
			Amount:        float64(latest.amount) / 100,
		}
	}
	if len(payments) == 0 {
		return desc, nil
	}

	window := monthlyWindow
	if r.annual != nil && r.annual.Matches(customer.Email, customer.Name) {
		window = annualWindow
	}

	last := payments[0].date
	end := last.Add(window)
	desc.SubscriptionStatus = StatusPaymentBased
	desc.LastPaymentDate = &last
	desc.CurrentPeriodEnd = &end
	desc.PaymentBasedActive = !r.now().After(end)
	return desc, nil
}

// classify splits history into successful payments and failures, both newest first.
func classify(charges []Charge, intents []PaymentIntent) ([]paymentRecord, []failureRecord) {
	var (
		payments []paymentRecord
		failures []failureRecord
	)

	for _, c := range charges {
		switch {
		case c.Status == "succeeded" && c.Amount > 0:
			payments = append(payments, paymentRecord{id: c.ID, date: c.Created})
		case c.Status == "failed":
			failures = append(failures, failureRecord{id: c.ID, date: c.Created, reason: reasonOr(c.FailureMessage), amount: c.Amount})
		}
	}

	for _, pi := range intents {
		switch {
		case pi.Status == "succeeded" && pi.Amount > 0:
			if !nearAny(payments, pi.Created) {
				payments = append(payments, paymentRecord{id: pi.ID, date: pi.Created})
			}
		case failedIntentStatuses[pi.Status]:
			failures = append(failures, failureRecord{id: pi.ID, date: pi.Created, reason: reasonOr(pi.LastErrorMessage), amount: pi.Amount})
		}
	}

	sort.SliceStable(payments, func(i, j int) bool { return payments[i].date.After(payments[j].date) })
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].date.After(failures[j].date) })
	return payments, failures
}

func nearAny(records []paymentRecord, t time.Time) bool {
	for _, rec := range records {
		d := rec.date.Sub(t)
		if d < 0 {
			d = -d
		}
		if d <= intentDedupWindow {
			return true
		}
	}
	return false
}

func reasonOr(msg string) string {
	if msg == "" {
		return DefaultFailureReason
	}
	return msg
}
