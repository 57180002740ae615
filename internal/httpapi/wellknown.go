package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// openIDConfiguration is the subset of the OIDC discovery document this
// server actually backs, per spec §6.
type openIDConfiguration struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	EndSessionEndpoint                string   `json:"end_session_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
}

// handleOpenIDConfiguration implements GET /.well-known/openid-configuration.
func (s *Server) handleOpenIDConfiguration(c *gin.Context) {
	c.JSON(http.StatusOK, openIDConfiguration{
		Issuer:                 s.BaseURL,
		AuthorizationEndpoint:  s.BaseURL + "/authorize",
		TokenEndpoint:          s.BaseURL + "/token",
		UserinfoEndpoint:       s.BaseURL + "/userinfo",
		EndSessionEndpoint:     s.BaseURL + "/logout",
		JWKSURI:                s.BaseURL + "/jwks.json",
		ResponseTypesSupported: []string{"code"},
		SubjectTypesSupported:  []string{"public"},
		// This deployment signs with the HS256 manager in internal/token;
		// an RS256-keyed Manager would additionally publish its public
		// key set below instead of an empty keys array.
		IDTokenSigningAlgValuesSupported:  []string{"HS256"},
		ScopesSupported:                   []string{"openid", "email", "profile"},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "client_secret_basic", "none"},
		GrantTypesSupported:               []string{"authorization_code", "refresh_token", "password"},
		CodeChallengeMethodsSupported:     []string{"S256", "plain"},
		ClaimsSupported:                   []string{"sub", "email", "email_verified", "name"},
	})
}

// jwks is the RFC 7517 JSON Web Key Set document.
type jwks struct {
	Keys []json.RawMessage `json:"keys"`
}

// handleJWKS implements GET /jwks.json. The configured signing manager is
// HMAC (HS256): per RFC 7517, a symmetric key has no business being
// published, so the key set is empty — this still satisfies spec §6's
// "server exposes /jwks.json" surface for clients that probe it, and is
// the contract point an RS256-keyed deployment would populate instead.
func (s *Server) handleJWKS(c *gin.Context) {
	c.JSON(http.StatusOK, jwks{Keys: []json.RawMessage{}})
}
