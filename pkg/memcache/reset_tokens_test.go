package mem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResetTokensAreSingleUse(t *testing.T) {
	store := NewResetTokens()
	store.Set("tok", "acc-1", time.Minute)

	assert.Equal(t, "acc-1", store.Consume("tok"))
	assert.Equal(t, "", store.Consume("tok"))
}

func TestResetTokensExpire(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewResetTokens()
	store.now = func() time.Time { return now }

	store.Set("old", "acc-1", time.Minute)
	store.Set("fresh", "acc-2", time.Hour)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, "", store.Consume("old"))
	assert.Equal(t, "acc-2", store.Consume("fresh"))
}
