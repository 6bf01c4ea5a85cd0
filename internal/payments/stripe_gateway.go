package payments

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clubhouse/internal/config"
)

var tracer = otel.Tracer("clubhouse/payments")

const customerPageSize = 100

// StripeGateway implements Gateway on the Stripe API. Every call runs under the configured timeout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		timeout:       timeout,
	}
}

func (g *StripeGateway) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	ctx, span := tracer.Start(ctx, "stripe."+op, trace.WithAttributes(attrs...))
	return ctx, span, cancel
}

func finish(span trace.Span, cancel context.CancelFunc, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	cancel()
}

func (g *StripeGateway) ListSubscriptions(ctx context.Context, customerID string) (subs []Subscription, err error) {
	ctx, span, cancel := g.start(ctx, "ListSubscriptions", attribute.String("customer.id", customerID))
	defer func() { finish(span, cancel, err) }()

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	it := g.api.Subscriptions.List(params)
	for it.Next() {
		s := it.Subscription()
		subs = append(subs, Subscription{
			ID:                 s.ID,
			CustomerID:         customerID,
			Status:             string(s.Status),
			CurrentPeriodStart: time.Unix(s.CurrentPeriodStart, 0).UTC(),
			CurrentPeriodEnd:   time.Unix(s.CurrentPeriodEnd, 0).UTC(),
		})
	}
	return subs, it.Err()
}

func (g *StripeGateway) GetCustomer(ctx context.Context, customerID string) (_ *Customer, err error) {
	ctx, span, cancel := g.start(ctx, "GetCustomer", attribute.String("customer.id", customerID))
	defer func() { finish(span, cancel, err) }()

	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := g.api.Customers.Get(customerID, params)
	if err != nil {
		return nil, err
	}
	return &Customer{ID: c.ID, Email: c.Email, Name: c.Name}, nil
}

func (g *StripeGateway) ListCustomersByEmail(ctx context.Context, email string, limit int) (out []Customer, err error) {
	ctx, span, cancel := g.start(ctx, "ListCustomersByEmail")
	defer func() { finish(span, cancel, err) }()

	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.Single = true

	it := g.api.Customers.List(params)
	for it.Next() && len(out) < limit {
		c := it.Customer()
		out = append(out, Customer{ID: c.ID, Email: c.Email, Name: c.Name})
	}
	return out, it.Err()
}

func (g *StripeGateway) ListAllCustomers(ctx context.Context) (out []Customer, err error) {
	// paging through every customer can take longer than a single call budget
	ctx, span := tracer.Start(ctx, "stripe.ListAllCustomers")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	params := &stripe.CustomerListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(customerPageSize)

	it := g.api.Customers.List(params)
	for it.Next() {
		c := it.Customer()
		if c.Deleted {
			continue
		}
		out = append(out, Customer{ID: c.ID, Email: c.Email, Name: c.Name})
	}
	span.SetAttributes(attribute.Int("customers.count", len(out)))
	return out, it.Err()
}

func (g *StripeGateway) ListCharges(ctx context.Context, customerID string, limit int) (out []Charge, err error) {
	ctx, span, cancel := g.start(ctx, "ListCharges", attribute.String("customer.id", customerID))
	defer func() { finish(span, cancel, err) }()

	params := &stripe.ChargeListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.Single = true

	it := g.api.Charges.List(params)
	for it.Next() && len(out) < limit {
		out = append(out, chargeFrom(it.Charge()))
	}
	return out, it.Err()
}

func (g *StripeGateway) GetCharge(ctx context.Context, chargeID string) (_ *Charge, err error) {
	ctx, span, cancel := g.start(ctx, "GetCharge", attribute.String("charge.id", chargeID))
	defer func() { finish(span, cancel, err) }()

	params := &stripe.ChargeParams{}
	params.Context = ctx
	c, err := g.api.Charges.Get(chargeID, params)
	if err != nil {
		return nil, err
	}
	charge := chargeFrom(c)
	return &charge, nil
}

func chargeFrom(c *stripe.Charge) Charge {
	charge := Charge{
		ID:             c.ID,
		Amount:         c.Amount,
		Status:         string(c.Status),
		Created:        time.Unix(c.Created, 0).UTC(),
		FailureMessage: c.FailureMessage,
	}
	if c.Customer != nil {
		charge.CustomerID = c.Customer.ID
	}
	return charge
}

func (g *StripeGateway) ListPaymentIntents(ctx context.Context, customerID string, limit int) (out []PaymentIntent, err error) {
	ctx, span, cancel := g.start(ctx, "ListPaymentIntents", attribute.String("customer.id", customerID))
	defer func() { finish(span, cancel, err) }()

	params := &stripe.PaymentIntentListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.Single = true

	it := g.api.PaymentIntents.List(params)
	for it.Next() && len(out) < limit {
		pi := it.PaymentIntent()
		intent := PaymentIntent{
			ID:         pi.ID,
			CustomerID: customerID,
			Amount:     pi.Amount,
			Status:     string(pi.Status),
			Created:    time.Unix(pi.Created, 0).UTC(),
		}
		if pi.LastPaymentError != nil {
			intent.LastErrorMessage = pi.LastPaymentError.Msg
		}
		out = append(out, intent)
	}
	return out, it.Err()
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (_ *Customer, err error) {
	ctx, span, cancel := g.start(ctx, "CreateCustomer")
	defer func() { finish(span, cancel, err) }()

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	c, err := g.api.Customers.New(params)
	if err != nil {
		return nil, err
	}
	return &Customer{ID: c.ID, Email: c.Email, Name: c.Name}, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (_ *CheckoutSession, err error) {
	ctx, span, cancel := g.start(ctx, "CreateCheckoutSession", attribute.String("checkout.mode", string(req.Mode)))
	defer func() { finish(span, cancel, err) }()

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(req.Mode)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	} else if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	if req.AllowPromotionCodes {
		params.AllowPromotionCodes = stripe.Bool(true)
	}
	for _, li := range req.LineItems {
		item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(li.Quantity)}
		if li.PriceID != "" {
			item.Price = stripe.String(li.PriceID)
		} else {
			item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(li.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
			}
		}
		params.LineItems = append(params.LineItems, item)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CancelSubscriptions(ctx context.Context, customerID string) (n int, err error) {
	subs, err := g.ListSubscriptions(ctx, customerID)
	if err != nil {
		return 0, err
	}

	ctx, span, cancel := g.start(ctx, "CancelSubscriptions", attribute.String("customer.id", customerID))
	defer func() { finish(span, cancel, err) }()

	for _, s := range subs {
		switch stripe.SubscriptionStatus(s.Status) {
		case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
			continue
		}
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		if _, err := g.api.Subscriptions.Cancel(s.ID, params); err != nil {
			return n, fmt.Errorf("cancel subscription %s: %w", s.ID, err)
		}
		n++
	}
	return n, nil
}

func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	out := &Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}

var _ Gateway = (*StripeGateway)(nil)
