// Package mailtest records outgoing email instead of sending it.
package mailtest

import (
	"context"
	"sync"

	"clubhouse/internal/services"
)

type Mailer struct {
	mu   sync.Mutex
	sent []services.Email

	// Err is returned from every Send when set.
	Err error
}

func (m *Mailer) Send(_ context.Context, email services.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *Mailer) Sent() []services.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.Email(nil), m.sent...)
}

// To returns the emails addressed to addr, in send order.
func (m *Mailer) To(addr string) []services.Email {
	var out []services.Email
	for _, e := range m.Sent() {
		if e.To == addr {
			out = append(out, e)
		}
	}
	return out
}

func (m *Mailer) Subjects() []string {
	var out []string
	for _, e := range m.Sent() {
		out = append(out, e.Subject)
	}
	return out
}

var _ services.IMailService = (*Mailer)(nil)
