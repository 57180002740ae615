package engine

import (
	"strings"

	"github.com/uitsmijter/uitsmijter/internal/apperr"
	"github.com/uitsmijter/uitsmijter/internal/scope"
)

// UserinfoRequest carries the Authorization header's bearer token.
type UserinfoRequest struct {
	AuthorizationHeader string
}

// Userinfo implements spec §4.8's /userinfo algorithm: requires a valid
// bearer access token, returns claim_allow_list ∩ scope-projected claims.
func (e *Engine) Userinfo(req UserinfoRequest) Result {
	raw, ok := bearerToken(req.AuthorizationHeader)
	if !ok {
		return invalidTokenResult()
	}

	claims, err := e.deps.Tokens.DecodeAny(raw)
	if err != nil {
		return invalidTokenResult()
	}

	tenant, err := e.deps.Registry.LookupTenantByName(claims.Tenant)
	if err != nil {
		return invalidTokenResult()
	}

	grantedScope := strings.Fields(claims.Scope)
	projected := scope.ProjectClaims(claims.Extra, tenant.ClaimAllowList, grantedScope)
	projected["sub"] = claims.Subject

	return Result{Kind: ResultJSON, JSONBody: UserinfoResponse(projected)}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if tok == "" {
		return "", false
	}
	return tok, true
}

func invalidTokenResult() Result {
	return Result{Kind: ResultError, Err: apperr.New("invalid_token", "the access token is missing, expired, or invalid")}
}
