package validator

import (
	"context"

	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/model"
)

// staticUser is one entry of a fixed allow-list.
type staticUser struct {
	Username     string
	PasswordHash string // bcrypt hash, per internal/crypto.HashSecret
	Claims       map[string]any
}

// Static is the simplest credential validator: a fixed, in-memory
// allow-list of username/password-hash pairs per tenant. Grounded on
// spec §9's "static allow-list" concrete adapter.
type Static struct {
	usersByTenant map[string][]staticUser
}

// NewStatic constructs a Static validator from a tenant -> users map.
func NewStatic(usersByTenant map[string][]staticUser) *Static {
	return &Static{usersByTenant: usersByTenant}
}

// AddUser registers one allow-listed user for a tenant. password is
// hashed immediately; the plaintext is never retained.
func (s *Static) AddUser(tenantName, username, password string, claims map[string]any) error {
	hash, err := crypto.HashSecret(password)
	if err != nil {
		return err
	}
	if s.usersByTenant == nil {
		s.usersByTenant = make(map[string][]staticUser)
	}
	s.usersByTenant[tenantName] = append(s.usersByTenant[tenantName], staticUser{
		Username:     username,
		PasswordHash: hash,
		Claims:       claims,
	})
	return nil
}

// Validate implements Validator.
func (s *Static) Validate(_ context.Context, tenant *model.Tenant, username, password string) (model.ValidatorResult, error) {
	if tenant == nil {
		return model.ValidatorResult{Reason: "unknown tenant"}, nil
	}
	for _, u := range s.usersByTenant[tenant.Name] {
		if u.Username == username {
			if crypto.VerifySecret(password, u.PasswordHash) {
				return model.ValidatorResult{OK: true, Subject: username, Claims: u.Claims}, nil
			}
			return model.ValidatorResult{Reason: "bad credentials"}, nil
		}
	}
	return model.ValidatorResult{Reason: "bad credentials"}, nil
}
