package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/uitsmijter/uitsmijter/internal/codes"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/model"
	"github.com/uitsmijter/uitsmijter/internal/refresh"
	"github.com/uitsmijter/uitsmijter/internal/registry"
	"github.com/uitsmijter/uitsmijter/internal/session"
	"github.com/uitsmijter/uitsmijter/internal/token"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// fakeValidator is a stub credential check: a fixed allow-list keyed by
// username, so engine tests don't depend on any real validator adapter.
type fakeValidator struct {
	mu     sync.Mutex
	users  map[string]string // username -> password
	claims map[string]map[string]any
	calls  int
}

func newFakeValidator() *fakeValidator {
	return &fakeValidator{users: map[string]string{}, claims: map[string]map[string]any{}}
}

func (f *fakeValidator) allow(username, password string, claims map[string]any) {
	f.users[username] = password
	f.claims[username] = claims
}

func (f *fakeValidator) Validate(_ context.Context, _ *model.Tenant, username, password string) (model.ValidatorResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	want, ok := f.users[username]
	if !ok || want != password {
		return model.ValidatorResult{Reason: "bad credentials"}, nil
	}
	return model.ValidatorResult{OK: true, Subject: username, Claims: f.claims[username]}, nil
}

// fakeResolver implements ValidatorResolver over a single fixed Validator.
type fakeResolver struct {
	v   validator.Validator
	err error
}

func (f *fakeResolver) For(_ *model.Tenant) (validator.Validator, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.v, nil
}

const testRegistryYAML = `
tenants:
  - name: acme
    hosts: ["acme.test"]
    silent_login: false
    validator_kind: static
    allowed_scopes: ["openid", "email", "profile"]
    claim_allow_list: ["email", "email_verified"]
    allow_password_grant: true
  - name: silent
    hosts: ["silent.test"]
    silent_login: true
    validator_kind: static
    allowed_scopes: ["openid", "email"]
    claim_allow_list: ["email"]
clients:
  - id: app1
    secret: s3cr3t
    tenant_name: acme
    redirect_uris: ["https://app1.test/cb"]
    allowed_scopes: ["openid", "email", "profile"]
    allowed_grant_types: ["authorization_code", "refresh_token", "password"]
  - id: spa1
    tenant_name: acme
    redirect_uris: ["https://spa1.test/cb"]
    allowed_scopes: ["openid", "email"]
    require_pkce: true
    allowed_grant_types: ["authorization_code", "refresh_token"]
  - id: silentapp
    secret: s3cr3t
    tenant_name: silent
    redirect_uris: ["https://silentapp.test/cb"]
    allowed_scopes: ["openid", "email"]
    allowed_grant_types: ["authorization_code", "refresh_token", "password"]
`

// testHarness bundles a fully-wired Engine plus its fake validator, for
// driving the flow end-to-end without any HTTP server (SPEC_FULL.md's
// testing note: internal/engine sequence tests call engine functions
// directly with fake Deps).
type testHarness struct {
	engine    *Engine
	fv        *fakeValidator
	codes     *codes.Store
	refresh   *refresh.Store
	sessions  *session.Manager
	tokens    *token.Manager
	registry  *registry.Registry
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	r := registry.New()
	if err := r.Load([]byte(testRegistryYAML)); err != nil {
		t.Fatalf("load registry: %v", err)
	}

	fv := newFakeValidator()
	codeStore := codes.NewStore()
	refreshStore := refresh.NewStore()
	sessions := session.NewManager([]byte("session-secret-session-secret-32"), 0)
	tokens := token.NewManager([]byte("token-secret-token-secret-32byte"), "https://issuer.test")

	eng := New(Deps{
		Registry:        r,
		Validators:      &fakeResolver{v: fv},
		Sessions:        sessions,
		Codes:           codeStore,
		Refresh:         refreshStore,
		Tokens:          tokens,
		ChallengeSecret: []byte("challenge-secret-challenge-32by"),
	})

	return &testHarness{
		engine:   eng,
		fv:       fv,
		codes:    codeStore,
		refresh:  refreshStore,
		sessions: sessions,
		tokens:   tokens,
		registry: r,
	}
}

func pkceChallenge(verifier string) string {
	return crypto.PKCEChallengeS256(verifier)
}

// extractQueryParam pulls a single key's value out of a "url?a=1&b=2"
// string, for asserting on the `code` a redirect Result carries without
// needing a full URL-parsing dependency in the test.
func extractQueryParam(rawURL, key string) string {
	marker := key + "="
	idx := -1
	for i := 0; i+len(marker) <= len(rawURL); i++ {
		if rawURL[i:i+len(marker)] == marker {
			idx = i + len(marker)
			break
		}
	}
	if idx < 0 {
		return ""
	}
	end := idx
	for end < len(rawURL) && rawURL[end] != '&' {
		end++
	}
	return rawURL[idx:end]
}
