package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/uitsmijter/uitsmijter/internal/engine"
	"github.com/uitsmijter/uitsmijter/internal/session"
)

// responsibleDomain returns the tenant's configured responsibility
// domain, or the request Host when the tenant hasn't set one. Each handler
// calls it directly and it is recomputed on every call; the result is not
// stored in the request context. An unknown tenant yields "" —
// internal/session.ResponsibilityHash already treats a nil tenant (and
// internal/engine an empty domain) as "no cookie may be minted or
// honored", per spec §3's invariant.
func (s *Server) responsibleDomain(c *gin.Context) string {
	tenant, err := s.Registry.LookupTenantByHost(c.Request.Host)
	if err != nil {
		return ""
	}
	if tenant.ResponsibleDomain != "" {
		return tenant.ResponsibleDomain
	}
	return c.Request.Host
}

// ssoCookie extracts the cookie bound to the current responsibility hash,
// if the caller already knows it; authorize/logout compute the hash
// themselves since it depends on the tenant this handler looks up.
func ssoCookie(c *gin.Context, cookieName string) (string, bool) {
	v, err := c.Cookie(cookieName)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// handleAuthorize implements GET /authorize, per spec §6.
func (s *Server) handleAuthorize(c *gin.Context) {
	q := c.Request.URL.Query()

	tenant, terr := s.Registry.LookupTenantByHost(c.Request.Host)
	var cookieValue string
	var hasCookie bool
	if terr == nil {
		respHash := session.ResponsibilityHash(tenant, s.responsibleDomain(c))
		if respHash != "" {
			cookieValue, hasCookie = ssoCookie(c, session.CookieName(respHash))
		}
	}

	req := engine.AuthorizeRequest{
		Host:                c.Request.Host,
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               splitScope(q.Get("scope")),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Nonce:               q.Get("nonce"),
		ResponsibleDomain:   s.responsibleDomain(c),
		HasCookie:           hasCookie,
		CookieValue:         cookieValue,
	}

	// Invariant 5 / scenario S4: internal/engine already refuses to
	// redirect on a redirect_uri mismatch (it returns ResultError, never
	// ResultRedirect, for that case) — writeResult's ResultError branch
	// renders a direct JSON error with no Location header, satisfying
	// "on mismatch, do not redirect" at the transport layer too.
	res := s.Engine.Authorize(req)
	s.writeResult(c, res)
}

func splitScope(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}
