// Package paymentstest provides an in-memory payments.Gateway for tests.
package paymentstest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"clubhouse/internal/payments"
)

var ErrBadSignature = errors.New("paymentstest: bad signature")

// Gateway is a scriptable fake. Calls counts invocations per method name.
type Gateway struct {
	mu sync.Mutex

	Customers     map[string]payments.Customer
	Subscriptions map[string][]payments.Subscription
	Charges       map[string][]payments.Charge
	Intents       map[string][]payments.PaymentIntent
	Sessions      []payments.CheckoutRequest

	// FailOn makes the named method return Err.
	FailOn map[string]bool
	Err    error

	Calls map[string]int

	nextID int
}

func NewGateway() *Gateway {
	return &Gateway{
		Customers:     map[string]payments.Customer{},
		Subscriptions: map[string][]payments.Subscription{},
		Charges:       map[string][]payments.Charge{},
		Intents:       map[string][]payments.PaymentIntent{},
		FailOn:        map[string]bool{},
		Calls:         map[string]int{},
	}
}

func (g *Gateway) call(name string) error {
	g.Calls[name]++
	if g.FailOn[name] {
		if g.Err != nil {
			return g.Err
		}
		return fmt.Errorf("paymentstest: %s failed", name)
	}
	return nil
}

// CallCount is safe to use while other goroutines hit the fake.
func (g *Gateway) CallCount(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[name]
}

func (g *Gateway) AddCustomer(c payments.Customer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Customers[c.ID] = c
}

func (g *Gateway) ListSubscriptions(_ context.Context, customerID string) ([]payments.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ListSubscriptions"); err != nil {
		return nil, err
	}
	return append([]payments.Subscription(nil), g.Subscriptions[customerID]...), nil
}

func (g *Gateway) GetCustomer(_ context.Context, customerID string) (*payments.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("GetCustomer"); err != nil {
		return nil, err
	}
	c, ok := g.Customers[customerID]
	if !ok {
		return nil, fmt.Errorf("paymentstest: no such customer: %s", customerID)
	}
	return &c, nil
}

func (g *Gateway) ListCustomersByEmail(_ context.Context, email string, limit int) ([]payments.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ListCustomersByEmail"); err != nil {
		return nil, err
	}
	var out []payments.Customer
	for _, c := range g.sortedCustomers() {
		if c.Email == email && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (g *Gateway) ListAllCustomers(_ context.Context) ([]payments.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ListAllCustomers"); err != nil {
		return nil, err
	}
	return g.sortedCustomers(), nil
}

func (g *Gateway) sortedCustomers() []payments.Customer {
	out := make([]payments.Customer, 0, len(g.Customers))
	for _, c := range g.Customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Gateway) ListCharges(_ context.Context, customerID string, limit int) ([]payments.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ListCharges"); err != nil {
		return nil, err
	}
	out := g.Charges[customerID]
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]payments.Charge(nil), out...), nil
}

func (g *Gateway) ListPaymentIntents(_ context.Context, customerID string, limit int) ([]payments.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ListPaymentIntents"); err != nil {
		return nil, err
	}
	out := g.Intents[customerID]
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]payments.PaymentIntent(nil), out...), nil
}

func (g *Gateway) GetCharge(_ context.Context, chargeID string) (*payments.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("GetCharge"); err != nil {
		return nil, err
	}
	for _, list := range g.Charges {
		for _, c := range list {
			if c.ID == chargeID {
				return &c, nil
			}
		}
	}
	return nil, fmt.Errorf("paymentstest: no such charge: %s", chargeID)
}

func (g *Gateway) CreateCustomer(_ context.Context, email, name string, _ map[string]string) (*payments.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("CreateCustomer"); err != nil {
		return nil, err
	}
	g.nextID++
	c := payments.Customer{ID: fmt.Sprintf("cus_test_%d", g.nextID), Email: email, Name: name}
	g.Customers[c.ID] = c
	return &c, nil
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("CreateCheckoutSession"); err != nil {
		return nil, err
	}
	g.Sessions = append(g.Sessions, req)
	g.nextID++
	id := fmt.Sprintf("cs_test_%d", g.nextID)
	return &payments.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (g *Gateway) CancelSubscriptions(_ context.Context, customerID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("CancelSubscriptions"); err != nil {
		return 0, err
	}
	n := 0
	for i, s := range g.Subscriptions[customerID] {
		if s.Status != "canceled" {
			g.Subscriptions[customerID][i].Status = "canceled"
			n++
		}
	}
	return n, nil
}

// ConstructEvent accepts any signature except "bad" and reads a Stripe-shaped event payload.
func (g *Gateway) ConstructEvent(payload []byte, signature string) (*payments.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ConstructEvent"); err != nil {
		return nil, err
	}
	if signature == "bad" {
		return nil, ErrBadSignature
	}
	var raw struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	return &payments.Event{
		ID:      raw.ID,
		Type:    raw.Type,
		Created: time.Unix(raw.Created, 0).UTC(),
		Object:  raw.Data.Object,
	}, nil
}

// EventPayload builds a webhook body for ConstructEvent.
func EventPayload(id, eventType string, object interface{}) []byte {
	obj, err := json.Marshal(object)
	if err != nil {
		panic(err)
	}
	body, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]json.RawMessage{"object": obj},
	})
	if err != nil {
		panic(err)
	}
	return body
}

var _ payments.Gateway = (*Gateway)(nil)
