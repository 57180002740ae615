package engine

import (
	"net/url"
	"time"

	"github.com/uitsmijter/uitsmijter/internal/apperr"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/logger"
	"github.com/uitsmijter/uitsmijter/internal/model"
	"github.com/uitsmijter/uitsmijter/internal/scope"
	"github.com/uitsmijter/uitsmijter/internal/session"
)

// AuthorizeRequest carries everything /authorize needs, extracted from
// the HTTP request by internal/httpapi (spec §9: the engine never
// observes *http.Request directly).
type AuthorizeRequest struct {
	Host                string
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Nonce               string

	// ResponsibleDomain is the responsibility-domain input for tenants
	// with silent_login=false. internal/httpapi's handler fills it from
	// Server.responsibleDomain on each call; no middleware or
	// request-context value carries it.
	ResponsibleDomain string

	// CookieValue and HasCookie describe the SSO cookie presented for the
	// computed responsibility hash, if any.
	HasCookie   bool
	CookieValue string
}

// Authorize implements spec §4.8's /authorize algorithm.
func (e *Engine) Authorize(req AuthorizeRequest) Result {
	tenant, err := e.deps.Registry.LookupTenantByHost(req.Host)
	if err != nil {
		return errResult(apperr.New(apperr.InvalidRequest, "unknown tenant for this host"))
	}

	client, err := e.deps.Registry.LookupClient(req.ClientID)
	if err != nil || client.TenantName != tenant.Name {
		return errResult(apperr.New(apperr.InvalidClient, "unknown client"))
	}

	// Invariant 5 / scenario S4: on redirect_uri mismatch, never redirect.
	if !client.HasRedirectURI(req.RedirectURI) {
		return errResult(apperr.New(apperr.InvalidRequest, "redirect_uri is not registered for this client"))
	}

	// Every failure from here on happens after redirect_uri has already
	// been confirmed valid, so it redirects to the client with
	// ?error=&state= instead of rendering JSON (spec §6).
	if req.State == "" {
		return errRedirectResult(apperr.New(apperr.InvalidRequest, "state is required"), req.RedirectURI, req.State)
	}

	if req.ResponseType != "code" {
		return errRedirectResult(apperr.New(apperr.UnsupportedResponseType, "only response_type=code is supported"), req.RedirectURI, req.State)
	}

	if !client.AllowsGrant("authorization_code") {
		return errRedirectResult(apperr.New(apperr.UnauthorizedClient, "client is not permitted to use this grant"), req.RedirectURI, req.State)
	}

	for _, s := range req.Scope {
		if !hasString(client.AllowedScopes, s) {
			return errRedirectResult(apperr.New(apperr.InvalidScope, "requested scope exceeds client allow-list"), req.RedirectURI, req.State)
		}
	}

	// Invariant 6: PKCE required for public clients or require_pkce.
	requiresPKCE := !client.HasSecret() || client.RequirePKCE
	if requiresPKCE {
		if req.CodeChallenge == "" {
			return errRedirectResult(apperr.New(apperr.InvalidRequest, "code_challenge is required for this client"), req.RedirectURI, req.State)
		}
		if req.CodeChallengeMethod != "S256" && req.CodeChallengeMethod != "PLAIN" {
			return errRedirectResult(apperr.New(apperr.InvalidRequest, "code_challenge_method must be S256 or PLAIN"), req.RedirectURI, req.State)
		}
	}

	respHash := session.ResponsibilityHash(tenant, req.ResponsibleDomain)

	if req.HasCookie && respHash != "" {
		sso, err := e.deps.Sessions.Parse(req.CookieValue, respHash)
		if err == nil && sso.TenantName == tenant.Name {
			return e.issueCode(tenant, client, req.ResponseType, req.RedirectURI, req.Scope, req.State,
				req.CodeChallenge, req.CodeChallengeMethod, req.Nonce, sso.Subject, respHash, sso, sso.Claims)
		}
		if err != nil && err != session.ErrWrongDomain {
			logger.Security().Debug().Err(err).Msg("sso cookie rejected")
		}
	}

	lc := model.LoginChallenge{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		ResponseType:        req.ResponseType,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
		Mode:                "login",
		IssuedAt:            e.deps.now(),
	}
	location, err := e.EncodeChallenge(lc, tenant.Name)
	if err != nil {
		return errResult(apperr.Wrap("", err))
	}
	lc.ReturnLocation = location

	return Result{Kind: ResultRenderLogin, LoginChallenge: &lc}
}

// issueCode mints an authorization code bound to all challenge bindings
// and returns a redirect Result, rotating the SSO cookie along the way
// (spec §4.5: "rotated on every use").
func (e *Engine) issueCode(tenant *model.Tenant, client *model.Client, responseType, redirectURI string,
	requestedScope []string, state, codeChallenge, codeChallengeMethod, nonce, subject, respHash string,
	sso *model.SSOCookie, claims map[string]any) Result {

	finalScope, err := e.resolveScope(requestedScope, client, tenant)
	if err != nil {
		return errRedirectResult(err, redirectURI, state)
	}

	code, err := crypto.RandomOpaque(32)
	if err != nil {
		return errResult(apperr.Wrap("", err))
	}

	now := e.deps.now()
	rec := &model.AuthorizationCode{
		ClientID:            client.ID,
		TenantName:          tenant.Name,
		Subject:             subject,
		RedirectURI:         redirectURI,
		Scope:               finalScope,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
		Nonce:               nonce,
		State:               state,
		ExpiresAt:           now.Add(codeTTL(tenant)),
		Claims:              claims,
	}
	e.deps.Codes.Put(code, rec)

	redirectURL := redirectURI + "?" + url.Values{"code": {code}, "state": {state}}.Encode()

	result := Result{Kind: ResultRedirect, RedirectURL: redirectURL}

	var cookieName, cookieValue string
	var expiresAt time.Time
	if sso != nil {
		cookieName, cookieValue, expiresAt, err = e.deps.Sessions.Rotate(sso)
	} else {
		cookieName, cookieValue, expiresAt, err = e.deps.Sessions.Mint(subject, tenant, respHash, claims)
	}
	if err == nil {
		result.SetCookie = &CookieDirective{Name: cookieName, Value: cookieValue, ExpiresAt: expiresAt}
	}
	return result
}

func (e *Engine) resolveScope(requested []string, client *model.Client, tenant *model.Tenant) ([]string, *apperr.OAuthError) {
	final, err := scope.Resolve(requested, client.AllowedScopes, tenant.AllowedScopes)
	if err != nil {
		return nil, apperr.New(apperr.InvalidScope, "no scopes survived intersection with client/tenant allow-lists")
	}
	return final, nil
}

func codeTTL(tenant *model.Tenant) time.Duration {
	if tenant.CodeTTL <= 0 {
		return 60 * time.Second
	}
	if tenant.CodeTTL > 60*time.Second {
		return 60 * time.Second
	}
	return tenant.CodeTTL
}
