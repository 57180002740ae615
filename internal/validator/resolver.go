package validator

import (
	"fmt"
	"sync"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

// ErrNoValidator is returned by Resolver.For when a tenant has no
// validator registered for it.
var ErrNoValidator = fmt.Errorf("validator: no validator registered for tenant")

// Resolver implements internal/engine's ValidatorResolver by dispatching
// on tenant name to a Validator built once at startup. Tenant-specific
// adapters (Static/Script/OIDC/SAML/TOTP) are constructed from config
// ahead of time, since several of them (OIDC discovery, SAML SP
// metadata) do real I/O or parsing that must not happen on the request
// path — so the resolver is just a lookup table, not a factory.
type Resolver struct {
	mu    sync.RWMutex
	byName map[string]Validator
}

// NewResolver constructs an empty Resolver; register tenants with
// Register before serving traffic.
func NewResolver() *Resolver {
	return &Resolver{byName: make(map[string]Validator)}
}

// Register binds a tenant name to the Validator that should check its
// credentials. v is always wrapped in NewBounded(v, concurrency); a
// concurrency <= 0 makes NewBounded use DefaultConcurrency.
func (r *Resolver) Register(tenantName string, v Validator, concurrency int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[tenantName] = NewBounded(v, concurrency)
}

// For implements engine.ValidatorResolver.
func (r *Resolver) For(tenant *model.Tenant) (Validator, error) {
	if tenant == nil {
		return nil, ErrNoValidator
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byName[tenant.Name]
	if !ok {
		return nil, ErrNoValidator
	}
	return v, nil
}
