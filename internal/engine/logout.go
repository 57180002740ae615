package engine

import (
	"github.com/uitsmijter/uitsmijter/internal/session"
)

// LogoutRequest carries the GET /logout query parameters plus the
// pre-resolved responsibility-domain input.
type LogoutRequest struct {
	Host                  string
	ResponsibleDomain     string
	HasCookie             bool
	CookieValue           string
	PostLogoutRedirectURI string
}

// Logout implements spec §4.8's /logout algorithm: revokes the session
// cookie, optionally following post_logout_redirect_uri when it is a
// member of the client's allow-list (SPEC_FULL.md §9 resolution).
func (e *Engine) Logout(req LogoutRequest) Result {
	tenant, err := e.deps.Registry.LookupTenantByHost(req.Host)
	if err != nil {
		return Result{Kind: ResultJSON, JSONBody: map[string]string{"status": "ok"}}
	}

	respHash := session.ResponsibilityHash(tenant, req.ResponsibleDomain)
	result := Result{Kind: ResultJSON, JSONBody: map[string]string{"status": "ok"}}
	if respHash != "" {
		result.SetCookie = &CookieDirective{Name: session.RevokeCookieName(respHash), MaxAgeZero: true}
	}

	if req.PostLogoutRedirectURI == "" {
		return result
	}

	for _, c := range e.deps.Registry.ClientsForTenant(tenant.Name) {
		if c.HasRedirectURI(req.PostLogoutRedirectURI) {
			result.Kind = ResultRedirect
			result.RedirectURL = req.PostLogoutRedirectURI
			return result
		}
	}
	// post_logout_redirect_uri not recognized for any client of this
	// tenant: ignored, per spec §9's allow-list-membership resolution —
	// the cookie is still revoked above.
	return result
}
