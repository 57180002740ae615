package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/codes"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/engine"
	"github.com/uitsmijter/uitsmijter/internal/model"
	"github.com/uitsmijter/uitsmijter/internal/ratelimit"
	"github.com/uitsmijter/uitsmijter/internal/refresh"
	"github.com/uitsmijter/uitsmijter/internal/registry"
	"github.com/uitsmijter/uitsmijter/internal/session"
	"github.com/uitsmijter/uitsmijter/internal/token"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// fakeValidator is a fixed username/password allow-list, mirroring
// internal/engine's own test harness convention so these transport-level
// tests don't depend on any real credential adapter.
type fakeValidator struct {
	mu    sync.Mutex
	users map[string]string
}

func (f *fakeValidator) allow(username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = password
}

func (f *fakeValidator) Validate(_ context.Context, _ *model.Tenant, username, password string) (model.ValidatorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if want, ok := f.users[username]; ok && want == password {
		return model.ValidatorResult{OK: true, Subject: username, Claims: map[string]any{"email": username + "@acme.test"}}, nil
	}
	return model.ValidatorResult{Reason: "bad credentials"}, nil
}

type fakeResolver struct{ v *fakeValidator }

func (f *fakeResolver) For(_ *model.Tenant) (validator.Validator, error) {
	return f.v, nil
}

const testRegistryYAML = `
tenants:
  - name: acme
    hosts: ["acme.test"]
    silent_login: false
    validator_kind: static
    allowed_scopes: ["openid", "email", "profile"]
    claim_allow_list: ["email"]
clients:
  - id: app1
    secret: s3cr3t
    tenant_name: acme
    redirect_uris: ["https://app1.test/cb"]
    allowed_scopes: ["openid", "email", "profile"]
    allowed_grant_types: ["authorization_code", "refresh_token", "password"]
`

// newTestServer builds the engine plus every collaborator it needs
// directly from a fresh in-memory registry, returning the unrouted
// *Server so callers can add rate limiters or a custom renderer before
// building the router.
func newTestServer(t *testing.T) (*Server, *fakeValidator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.New()
	require.NoError(t, reg.Load([]byte(testRegistryYAML)))

	fv := &fakeValidator{users: map[string]string{}}
	sessions := session.NewManager([]byte("session-secret-session-secret-32"), 0)
	tokens := token.NewManager([]byte("token-secret-token-secret-32byte"), "https://issuer.test")

	eng := engine.New(engine.Deps{
		Registry:        reg,
		Validators:      &fakeResolver{v: fv},
		Sessions:        sessions,
		Codes:           codes.NewStore(),
		Refresh:         refresh.NewStore(),
		Tokens:          tokens,
		ChallengeSecret: []byte("challenge-secret-challenge-32by"),
	})

	return &Server{Engine: eng, Registry: reg, BaseURL: "https://issuer.test"}, fv
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeValidator) {
	t.Helper()
	srv, fv := newTestServer(t)
	return NewRouter(srv), fv
}

func doRequest(router *gin.Engine, method, target, host string, body url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Host = host
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWellKnownAndJWKS(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/.well-known/openid-configuration", "acme.test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Equal(t, "https://issuer.test", doc["issuer"])
	require.Equal(t, "https://issuer.test/authorize", doc["authorization_endpoint"])

	w = doRequest(router, http.MethodGet, "/jwks.json", "acme.test", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

// TestAuthorizeBadRedirectURINeverRedirects is invariant 5/scenario S4 at
// the transport layer: a redirect_uri mismatch must render a direct
// error response, never a 3xx with a Location header.
func TestAuthorizeBadRedirectURINeverRedirects(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet,
		"/authorize?response_type=code&client_id=app1&redirect_uri=https://evil.test/cb&state=xyz&scope=openid",
		"acme.test", nil)

	require.NotEqual(t, http.StatusFound, w.Code)
	require.Empty(t, w.Header().Get("Location"))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

// TestFullAuthorizationCodeFlow drives /authorize -> /login -> /token
// end to end through the real HTTP surface.
func TestFullAuthorizationCodeFlow(t *testing.T) {
	router, fv := newTestRouter(t)
	fv.allow("alice", "correct horse")

	verifier := "this-is-a-sufficiently-long-pkce-verifier-1234567890"
	challenge := crypto.PKCEChallengeS256(verifier)

	authzTarget := "/authorize?" + url.Values{
		"response_type":         {"code"},
		"client_id":             {"app1"},
		"redirect_uri":          {"https://app1.test/cb"},
		"state":                 {"xyz"},
		"scope":                 {"openid email"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}.Encode()

	w := doRequest(router, http.MethodGet, authzTarget, "acme.test", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var loginBody map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginBody))
	location, ok := loginBody["requestUri"].(string)
	require.True(t, ok)
	require.NotEmpty(t, location)

	w = doRequest(router, http.MethodPost, "/login", "acme.test", url.Values{
		"username": {"alice"},
		"password": {"correct horse"},
		"location": {location},
		"mode":     {"login"},
	})
	require.Equal(t, http.StatusFound, w.Code)
	redirectLocation := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(redirectLocation, "https://app1.test/cb"))

	parsed, err := url.Parse(redirectLocation)
	require.NoError(t, err)
	code := parsed.Query().Get("code")
	require.NotEmpty(t, code)
	require.Equal(t, "xyz", parsed.Query().Get("state"))

	w = doRequest(router, http.MethodPost, "/token", "acme.test", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"app1"},
		"client_secret": {"s3cr3t"},
		"code":          {code},
		"redirect_uri":  {"https://app1.test/cb"},
		"code_verifier": {verifier},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var tokenBody map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokenBody))
	require.NotEmpty(t, tokenBody["access_token"])
	require.Equal(t, "Bearer", tokenBody["token_type"])
}

func TestUserinfoRejectsMissingBearer(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/userinfo", "acme.test", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestLoginRateLimitReturns429(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.LoginLimiter = ratelimit.New(1, 1)
	limited := NewRouter(srv)

	target := "/authorize?response_type=code&client_id=app1&redirect_uri=https://app1.test/cb&state=xyz&scope=openid"
	first := doRequest(limited, http.MethodGet, target, "acme.test", nil)
	require.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := doRequest(limited, http.MethodGet, target, "acme.test", nil)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}
