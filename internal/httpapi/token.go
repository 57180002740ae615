package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/uitsmijter/uitsmijter/internal/engine"
)

// handleToken implements POST /token, per spec §6: grant_type,
// client_id, client_secret?, code?, redirect_uri?, code_verifier?,
// refresh_token?, username?, password?, scope?. Client authentication
// may arrive either in the body (client_secret_post) or as HTTP Basic
// (client_secret_basic); internal/engine picks whichever is present.
func (s *Server) handleToken(c *gin.Context) {
	basicClientID, basicSecret, basicOK := c.Request.BasicAuth()

	req := engine.TokenRequest{
		GrantType:        c.PostForm("grant_type"),
		ClientID:         c.PostForm("client_id"),
		ClientSecret:     c.PostForm("client_secret"),
		BasicAuthPresent: basicOK,
		BasicClientID:    basicClientID,
		BasicSecret:      basicSecret,

		Code:         c.PostForm("code"),
		RedirectURI:  c.PostForm("redirect_uri"),
		CodeVerifier: c.PostForm("code_verifier"),

		RefreshToken: c.PostForm("refresh_token"),

		Username: c.PostForm("username"),
		Password: c.PostForm("password"),
		Scope:    splitScope(c.PostForm("scope")),
	}

	res := s.Engine.Token(c.Request.Context(), req)
	s.writeResult(c, res)
}
