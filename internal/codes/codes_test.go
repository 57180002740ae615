package codes

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

func TestConsumeSucceedsOnce(t *testing.T) {
	s := NewStore()
	s.Put("AAA", &model.AuthorizationCode{ClientID: "app1", ExpiresAt: time.Now().Add(time.Minute)})

	rec, err := s.Consume("AAA")
	require.NoError(t, err)
	assert.Equal(t, "app1", rec.ClientID)

	_, err = s.Consume("AAA")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestConsumeUnknownCodeFails(t *testing.T) {
	s := NewStore()
	_, err := s.Consume("does-not-exist")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestConsumeExpiredFails(t *testing.T) {
	s := NewStore()
	s.Put("AAA", &model.AuthorizationCode{ExpiresAt: time.Now().Add(-time.Second)})

	_, err := s.Consume("AAA")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

// TestConsumeIsLinearizable is the property test for spec invariant 1:
// concurrent callers consuming the same code observe exactly one success.
func TestConsumeIsLinearizable(t *testing.T) {
	s := NewStore()
	s.Put("AAA", &model.AuthorizationCode{ExpiresAt: time.Now().Add(time.Minute)})

	const goroutines = 50
	var successes int64
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Consume("AAA"); err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
}

func TestSweepRemovesExpired(t *testing.T) {
	s := NewStore()
	s.Put("expired", &model.AuthorizationCode{ExpiresAt: time.Now().Add(-time.Minute)})
	s.Put("fresh", &model.AuthorizationCode{ExpiresAt: time.Now().Add(time.Minute)})

	removed := s.Sweep(time.Now())
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, s.Len())
}
