package validator

import (
	"context"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

// Bounded wraps a Validator with a fixed concurrency cap, per spec §4.4:
// "a slow validator is a denial of service... per-tenant concurrency cap
// (default 32); excess calls fail-fast with rate_limited." Grounded on
// the semaphore-via-buffered-channel idiom used throughout the teacher's
// internal/middleware for bounding concurrent work.
type Bounded struct {
	delegate Validator
	sem      chan struct{}
}

// DefaultConcurrency is spec §4.4's default per-tenant concurrency cap.
const DefaultConcurrency = 32

// NewBounded wraps delegate with a concurrency cap. A non-positive
// concurrency falls back to DefaultConcurrency.
func NewBounded(delegate Validator, concurrency int) *Bounded {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Bounded{delegate: delegate, sem: make(chan struct{}, concurrency)}
}

// Validate acquires a slot before delegating, failing fast with
// ErrRateLimited instead of queuing when the cap is already saturated.
func (b *Bounded) Validate(ctx context.Context, tenant *model.Tenant, username, password string) (model.ValidatorResult, error) {
	select {
	case b.sem <- struct{}{}:
	default:
		return model.ValidatorResult{}, ErrRateLimited
	}
	defer func() { <-b.sem }()

	return b.delegate.Validate(ctx, tenant, username, password)
}
