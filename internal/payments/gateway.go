// Package payments wraps the payment processor and derives membership payment status from it.
package payments

import (
	"context"
	"encoding/json"
	"time"
)

type Customer struct {
	ID    string
	Email string
	Name  string
}

type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

type Charge struct {
	ID             string
	CustomerID     string
	Amount         int64 // cents
	Status         string
	Created        time.Time
	FailureMessage string
}

type PaymentIntent struct {
	ID               string
	CustomerID       string
	Amount           int64 // cents
	Status           string
	Created          time.Time
	LastErrorMessage string
}

type CheckoutMode string

const (
	CheckoutSubscription CheckoutMode = "subscription"
	CheckoutPayment      CheckoutMode = "payment"
)

type LineItem struct {
	PriceID string
	// Name and UnitAmount build an inline price when PriceID is empty.
	Name       string
	UnitAmount int64
	Quantity   int64
}

type CheckoutRequest struct {
	Mode                CheckoutMode
	CustomerID          string
	CustomerEmail       string
	ClientReferenceID   string
	LineItems           []LineItem
	SuccessURL          string
	CancelURL           string
	AllowPromotionCodes bool
	Metadata            map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified webhook delivery; Object is the raw JSON of data.object.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Object  json.RawMessage
}

// Gateway is the subset of the payment processor the service depends on.
type Gateway interface {
	ListSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	ListCustomersByEmail(ctx context.Context, email string, limit int) ([]Customer, error)
	ListAllCustomers(ctx context.Context) ([]Customer, error)
	ListCharges(ctx context.Context, customerID string, limit int) ([]Charge, error)
	ListPaymentIntents(ctx context.Context, customerID string, limit int) ([]PaymentIntent, error)
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)

	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*Customer, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// CancelSubscriptions cancels every live subscription of the customer and returns how many.
	CancelSubscriptions(ctx context.Context, customerID string) (int, error)

	ConstructEvent(payload []byte, signature string) (*Event, error)
}
