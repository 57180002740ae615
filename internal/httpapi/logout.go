package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/uitsmijter/uitsmijter/internal/engine"
	"github.com/uitsmijter/uitsmijter/internal/session"
)

// handleLogout implements GET /logout, per spec §6.
func (s *Server) handleLogout(c *gin.Context) {
	tenant, terr := s.Registry.LookupTenantByHost(c.Request.Host)
	var cookieValue string
	var hasCookie bool
	if terr == nil {
		respHash := session.ResponsibilityHash(tenant, s.responsibleDomain(c))
		if respHash != "" {
			cookieValue, hasCookie = ssoCookie(c, session.CookieName(respHash))
		}
	}

	res := s.Engine.Logout(engine.LogoutRequest{
		Host:                  c.Request.Host,
		ResponsibleDomain:     s.responsibleDomain(c),
		HasCookie:             hasCookie,
		CookieValue:           cookieValue,
		PostLogoutRedirectURI: c.Query("post_logout_redirect_uri"),
	})
	s.writeResult(c, res)
}
