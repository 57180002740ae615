// Package scope implements the final scope computation and claim
// projection from spec §4.9.
package scope

import "fmt"

// ErrInvalidScope is returned when the requested/allowed scope
// intersection is empty.
var ErrInvalidScope = fmt.Errorf("scope: invalid_scope")

// Resolve computes requested ∩ clientAllowed ∩ tenantAllowed. An empty
// result is ErrInvalidScope.
func Resolve(requested, clientAllowed, tenantAllowed []string) ([]string, error) {
	clientSet := toSet(clientAllowed)
	tenantSet := toSet(tenantAllowed)

	var final []string
	for _, s := range requested {
		if clientSet[s] && tenantSet[s] {
			final = append(final, s)
		}
	}
	if len(final) == 0 {
		return nil, ErrInvalidScope
	}
	return final, nil
}

// scopeClaims maps a scope value to the claim names it projects, mirroring
// spec §4.9's example ("email scope ⇒ email, email_verified").
var scopeClaims = map[string][]string{
	"openid":  {"sub"},
	"email":   {"email", "email_verified"},
	"profile": {"name", "given_name", "family_name", "preferred_username"},
}

// ProjectClaims returns the subset of validatorClaims allowed by both
// claimAllowList and the claims implied by grantedScope.
func ProjectClaims(validatorClaims map[string]any, claimAllowList, grantedScope []string) map[string]any {
	allow := toSet(claimAllowList)

	wanted := map[string]bool{}
	for _, s := range grantedScope {
		for _, c := range scopeClaims[s] {
			wanted[c] = true
		}
	}

	out := make(map[string]any)
	for k, v := range validatorClaims {
		if !allow[k] {
			continue
		}
		if !wanted[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
