// Package engine implements the protocol state machine from spec §4.8:
// /authorize, /login, issue-code, /token, /userinfo, /logout. It is
// transport-agnostic — no gin, no net/http — and returns a small Result
// sum type that internal/httpapi translates into actual HTTP responses.
// This mirrors the teacher's separation of internal/auth (pure logic)
// from internal/middleware (transport glue).
package engine

import (
	"context"
	"time"

	"github.com/uitsmijter/uitsmijter/internal/apperr"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/model"
	"github.com/uitsmijter/uitsmijter/internal/registry"
	"github.com/uitsmijter/uitsmijter/internal/session"
	"github.com/uitsmijter/uitsmijter/internal/token"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// CodeStore is the subset of internal/codes.Store the engine depends on.
type CodeStore interface {
	Put(code string, rec *model.AuthorizationCode)
	Consume(code string) (*model.AuthorizationCode, error)
	MarkFamily(code, familyID string)
	FamilyOf(code string) (string, bool)
}

// RefreshStore is the subset of internal/refresh.Store the engine depends on.
type RefreshStore interface {
	PutInitial(id string, rec *model.RefreshToken)
	Rotate(tokenID, newID string) (*model.RefreshToken, error)
	RevokeFamily(familyID string)
	Get(tokenID string) (*model.RefreshToken, bool)
}

// ValidatorResolver returns the credential validator configured for a
// tenant. Tenants may use different validator kinds (static/script/oidc/
// saml/totp); the engine does not care which, only that it implements
// validator.Validator.
type ValidatorResolver interface {
	For(tenant *model.Tenant) (validator.Validator, error)
}

// Deps bundles every collaborator the flow engine coordinates, per
// SPEC_FULL.md's §4.8 grounding note.
type Deps struct {
	Registry   *registry.Registry
	Validators ValidatorResolver
	Sessions   *session.Manager
	Codes      CodeStore
	Refresh    RefreshStore
	Tokens     *token.Manager

	// ChallengeSecret signs the `location` value carrying the
	// LoginChallenge between /authorize and /login.
	ChallengeSecret []byte

	Now func() time.Time // overridable for tests; defaults to time.Now
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Engine is the stateless protocol coordinator. It holds no per-request
// state of its own — every method takes the full request context it
// needs and returns a Result describing what the transport layer should
// do next.
type Engine struct {
	deps Deps
}

// New constructs an Engine bound to its collaborators.
func New(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// Result is the sum type every engine operation returns. Exactly one of
// the fields is meaningful, selected by Kind.
type Result struct {
	Kind ResultKind

	// Redirect
	RedirectURL string
	SetCookie   *CookieDirective

	// RenderLogin
	LoginChallenge *model.LoginChallenge
	LoginError     string

	// JSON
	JSONBody any

	// Error
	Err *apperr.OAuthError
	// ErrRedirectURI, when non-empty, instructs the transport to redirect
	// to ErrRedirectURI with ?error=<kind>&state=<ErrState> instead of
	// writing Err as a JSON body. Only set once redirect_uri has already
	// passed exact-match validation against the client's registered URIs
	// (spec §6: "Redirects carry error and state query parameters").
	ErrRedirectURI string
	ErrState       string
}

// ResultKind discriminates the Result sum type.
type ResultKind int

const (
	// ResultRedirect instructs the transport to issue a 302 to RedirectURL,
	// optionally setting SetCookie first.
	ResultRedirect ResultKind = iota
	// ResultRenderLogin instructs the transport to render the tenant's
	// login template with LoginChallenge (and LoginError if non-empty).
	ResultRenderLogin
	// ResultJSON instructs the transport to write JSONBody as the response.
	ResultJSON
	// ResultError instructs the transport to translate Err into an RFC
	// 6749 §5.2 error response (JSON body, or redirect-with-error when the
	// caller supplies a valid redirect_uri).
	ResultError
)

// CookieDirective describes one Set-Cookie the transport layer must emit.
type CookieDirective struct {
	Name      string
	Value     string
	ExpiresAt time.Time
	// MaxAgeZero, when true, instructs the transport to clear the cookie
	// instead of setting Value/ExpiresAt (used by /logout).
	MaxAgeZero bool
}

func errResult(err *apperr.OAuthError) Result {
	return Result{Kind: ResultError, Err: err}
}

// errRedirectResult builds a Result for an /authorize (or /login-via-
// issueCode) failure discovered after redirect_uri was already confirmed
// valid: the transport redirects to redirectURI with ?error=&state=
// rather than writing a JSON body.
func errRedirectResult(err *apperr.OAuthError, redirectURI, state string) Result {
	return Result{Kind: ResultError, Err: err, ErrRedirectURI: redirectURI, ErrState: state}
}

// TokenResponse is the RFC 6749 §5.1 JSON body for a successful /token call.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// UserinfoResponse is the /userinfo JSON body: claims allowed by
// claim_allow_list intersected with scope-projected claims, plus the
// subject (always present per OIDC core).
type UserinfoResponse map[string]any

func hasString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func joinScope(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// constantTimeSecretOK authenticates a confidential client's secret.
func constantTimeSecretOK(client *model.Client, submitted string) bool {
	if !client.HasSecret() {
		return submitted == ""
	}
	return crypto.ConstantTimeEqual(client.Secret, submitted)
}

func withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, 5*time.Second)
}
