package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/apperr"
)

func issueInitialCode(t *testing.T, h *testHarness, host, clientID, redirectURI, verifier, username, password string) string {
	t.Helper()

	authReq := AuthorizeRequest{
		Host:         host,
		ResponseType: "code",
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		Scope:        []string{"openid", "email"},
		State:        "s",
	}
	if verifier != "" {
		authReq.CodeChallenge = pkceChallenge(verifier)
		authReq.CodeChallengeMethod = "S256"
	}

	authResult := h.engine.Authorize(authReq)
	require.Equal(t, ResultRenderLogin, authResult.Kind)

	loginResult := h.engine.Login(context.Background(), LoginRequest{
		Location: authResult.LoginChallenge.ReturnLocation,
		Username: username,
		Password: password,
	})
	require.Equal(t, ResultRedirect, loginResult.Kind, "login must succeed: %v", loginResult.Err)

	code := extractQueryParam(loginResult.RedirectURL, "code")
	require.NotEmpty(t, code)
	return code
}

// S1: the full authorization_code exchange returns access+refresh+id
// tokens with claims flattened and scope-projected.
func TestTokenAuthorizationCodeHappyPath(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", map[string]any{"email": "alice@example.test", "email_verified": true})

	code := issueInitialCode(t, h, "acme.test", "app1", "https://app1.test/cb", "", "alice", "hunter2")

	result := h.engine.Token(context.Background(), TokenRequest{
		GrantType:   "authorization_code",
		ClientID:    "app1",
		ClientSecret: "s3cr3t",
		Code:        code,
		RedirectURI: "https://app1.test/cb",
	})
	require.Equal(t, ResultJSON, result.Kind, "token exchange must succeed: %v", result.Err)
	body, ok := result.JSONBody.(TokenResponse)
	require.True(t, ok)
	assert.NotEmpty(t, body.AccessToken)
	assert.NotEmpty(t, body.RefreshToken)
	assert.NotEmpty(t, body.IDToken, "openid scope must yield an id_token")

	claims, err := h.tokens.Decode(body.AccessToken, "app1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.test", claims.Extra["email"])
}

// S2 / invariant 1: a second exchange of the same code must fail with
// invalid_grant, and must revoke the refresh family the first exchange
// spawned.
func TestTokenAuthorizationCodeReplayRevokesFamily(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", nil)

	code := issueInitialCode(t, h, "acme.test", "app1", "https://app1.test/cb", "", "alice", "hunter2")

	first := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		Code:         code,
		RedirectURI:  "https://app1.test/cb",
	})
	require.Equal(t, ResultJSON, first.Kind)
	body := first.JSONBody.(TokenResponse)

	second := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		Code:         code,
		RedirectURI:  "https://app1.test/cb",
	})
	require.Equal(t, ResultError, second.Kind)
	assert.Equal(t, apperr.InvalidGrant, second.Err.Kind)

	// The refresh token issued by the first (legitimate) exchange must
	// now be unusable: the replay revoked its whole family.
	refreshResult := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		RefreshToken: body.RefreshToken,
	})
	require.Equal(t, ResultError, refreshResult.Kind)
	assert.Equal(t, apperr.InvalidGrant, refreshResult.Err.Kind)
}

// Invariant 6: PKCE verifier mismatch fails the exchange for a public
// client even though the initial /authorize succeeded.
func TestTokenAuthorizationCodeBadPKCEVerifier(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", nil)

	code := issueInitialCode(t, h, "acme.test", "spa1", "https://spa1.test/cb", "correct-verifier", "alice", "hunter2")

	result := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "spa1",
		Code:         code,
		RedirectURI:  "https://spa1.test/cb",
		CodeVerifier: "wrong-verifier",
	})
	require.Equal(t, ResultError, result.Kind)
	assert.Equal(t, apperr.InvalidGrant, result.Err.Kind)
}

func TestTokenAuthorizationCodeGoodPKCEVerifier(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", nil)

	code := issueInitialCode(t, h, "acme.test", "spa1", "https://spa1.test/cb", "correct-verifier", "alice", "hunter2")

	result := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "spa1",
		Code:         code,
		RedirectURI:  "https://spa1.test/cb",
		CodeVerifier: "correct-verifier",
	})
	require.Equal(t, ResultJSON, result.Kind, "unexpected error: %v", result.Err)
}

func TestTokenAuthorizationCodeRedirectURIMismatch(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", nil)

	code := issueInitialCode(t, h, "acme.test", "app1", "https://app1.test/cb", "", "alice", "hunter2")

	result := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		Code:         code,
		RedirectURI:  "https://app1.test/other-cb",
	})
	require.Equal(t, ResultError, result.Kind)
	assert.Equal(t, apperr.InvalidGrant, result.Err.Kind)
}

func TestTokenAuthorizationCodeWrongClientSecret(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", nil)

	code := issueInitialCode(t, h, "acme.test", "app1", "https://app1.test/cb", "", "alice", "hunter2")

	result := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "app1",
		ClientSecret: "totally-wrong",
		Code:         code,
		RedirectURI:  "https://app1.test/cb",
	})
	require.Equal(t, ResultError, result.Kind)
	assert.Equal(t, apperr.InvalidClient, result.Err.Kind)
}

// Invariant 2 / S5: rotation issues a fresh id, the old one becomes
// unusable, and presenting the old id again revokes the whole family.
func TestTokenRefreshRotationAndReplay(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", nil)

	code := issueInitialCode(t, h, "acme.test", "app1", "https://app1.test/cb", "", "alice", "hunter2")
	exchange := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		Code:         code,
		RedirectURI:  "https://app1.test/cb",
	})
	require.Equal(t, ResultJSON, exchange.Kind)
	r0 := exchange.JSONBody.(TokenResponse).RefreshToken

	rotated := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		RefreshToken: r0,
	})
	require.Equal(t, ResultJSON, rotated.Kind)
	r1 := rotated.JSONBody.(TokenResponse).RefreshToken
	assert.NotEqual(t, r0, r1)

	// Replaying r0 (already rotated away) must fail and revoke r1 too.
	replay := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		RefreshToken: r0,
	})
	require.Equal(t, ResultError, replay.Kind)
	assert.Equal(t, apperr.InvalidGrant, replay.Err.Kind)

	r1AlsoRevoked := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		RefreshToken: r1,
	})
	require.Equal(t, ResultError, r1AlsoRevoked.Kind)
	assert.Equal(t, apperr.InvalidGrant, r1AlsoRevoked.Err.Kind)
}

func TestTokenPasswordGrantHappyPath(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", map[string]any{"email": "alice@example.test"})

	result := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "password",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
		Username:     "alice",
		Password:     "hunter2",
		Scope:        []string{"openid", "email"},
	})
	require.Equal(t, ResultJSON, result.Kind, "unexpected error: %v", result.Err)
	body := result.JSONBody.(TokenResponse)
	assert.NotEmpty(t, body.AccessToken)
	assert.Nil(t, result.SetCookie, "password grant must never set an SSO cookie")
}

func TestTokenPasswordGrantDisallowedForTenant(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("bob", "pw", nil)

	result := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "password",
		ClientID:     "silentapp",
		ClientSecret: "s3cr3t",
		Username:     "bob",
		Password:     "pw",
		Scope:        []string{"openid"},
	})
	require.Equal(t, ResultError, result.Kind)
	assert.Equal(t, apperr.UnauthorizedClient, result.Err.Kind)
}

// Invariant 1: under any interleaving of concurrent /token calls
// presenting the same code, exactly one succeeds.
func TestTokenAuthorizationCodeConsumeIsLinearizable(t *testing.T) {
	h := newHarness(t)
	h.fv.allow("alice", "hunter2", nil)

	code := issueInitialCode(t, h, "acme.test", "app1", "https://app1.test/cb", "", "alice", "hunter2")

	const goroutines = 50
	var successes int64
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			result := h.engine.Token(context.Background(), TokenRequest{
				GrantType:    "authorization_code",
				ClientID:     "app1",
				ClientSecret: "s3cr3t",
				Code:         code,
				RedirectURI:  "https://app1.test/cb",
			})
			if result.Kind == ResultJSON {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successes)
}

func TestTokenUnsupportedGrantType(t *testing.T) {
	h := newHarness(t)

	result := h.engine.Token(context.Background(), TokenRequest{
		GrantType:    "implicit",
		ClientID:     "app1",
		ClientSecret: "s3cr3t",
	})
	require.Equal(t, ResultError, result.Kind)
	assert.Equal(t, apperr.UnsupportedGrantType, result.Err.Kind)
}
