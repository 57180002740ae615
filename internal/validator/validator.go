// Package validator defines the credential validator adapter contract
// from spec §4.4 and its concrete adapters.
//
// The adapter is the only place that sees plaintext credentials; it must
// never log them, and it never observes the raw *http.Request — callers
// extract form fields before invoking Validate (spec §9 design note).
package validator

import (
	"context"
	"fmt"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

// Validator is the uniform interface every credential check implements.
type Validator interface {
	Validate(ctx context.Context, tenant *model.Tenant, username, password string) (model.ValidatorResult, error)
}

// ErrRateLimited is returned when a validator call is rejected fail-fast
// because the per-tenant concurrency cap was exceeded (spec §4.4).
var ErrRateLimited = fmt.Errorf("validator: rate_limited")
