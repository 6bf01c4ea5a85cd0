package mem

import (
	"sync"
	"time"
)

// ResetTokenStore keeps single-use password reset tokens in memory.
type ResetTokenStore interface {
	Set(token string, accountID string, ttl time.Duration)

	// Consume returns the account id for token and removes it.
	// Returns "" if the token is missing or expired.
	Consume(token string) string

	// Sweep drops expired tokens and reports how many were removed.
	Sweep() int
}

type entry struct {
	accountID string
	expiresAt time.Time
}

type ResetTokens struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

func NewResetTokens() *ResetTokens {
	return &ResetTokens{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (s *ResetTokens) Set(token string, accountID string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[token] = entry{
		accountID: accountID,
		expiresAt: s.now().Add(ttl),
	}
}

func (s *ResetTokens) Consume(token string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[token]
	if !ok {
		return ""
	}
	delete(s.data, token)
	if s.now().After(e.expiresAt) {
		return ""
	}
	return e.accountID
}

func (s *ResetTokens) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}
