package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/uitsmijter/uitsmijter/internal/apperr"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/model"
	"github.com/uitsmijter/uitsmijter/internal/scope"
	"github.com/uitsmijter/uitsmijter/internal/token"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// TokenRequest carries the POST /token form fields, per spec §6.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	// BasicAuthPresent/BasicClientID/BasicSecret carry HTTP Basic
	// credentials when the client authenticated that way instead of via
	// the body (RFC 6749 §2.3.1's client_secret_basic).
	BasicAuthPresent bool
	BasicClientID    string
	BasicSecret      string

	Code         string
	RedirectURI  string
	CodeVerifier string

	RefreshToken string

	Username string
	Password string
	Scope    []string
}

// Token implements spec §4.8's /token algorithm across all three grants.
func (e *Engine) Token(ctx context.Context, req TokenRequest) Result {
	clientID := req.ClientID
	clientSecret := req.ClientSecret
	if req.BasicAuthPresent {
		clientID = req.BasicClientID
		clientSecret = req.BasicSecret
	}

	client, err := e.deps.Registry.LookupClient(clientID)
	if err != nil {
		return errResult(apperr.New(apperr.InvalidClient, "unknown client"))
	}
	tenant, err := e.deps.Registry.LookupTenantByName(client.TenantName)
	if err != nil {
		return errResult(apperr.New(apperr.InvalidClient, "client's tenant no longer exists"))
	}

	if !client.AllowsGrant(req.GrantType) {
		return errResult(apperr.New(apperr.UnauthorizedClient, "grant type not permitted for this client"))
	}

	switch req.GrantType {
	case "authorization_code":
		return e.tokenAuthorizationCode(tenant, client, clientSecret, req)
	case "refresh_token":
		return e.tokenRefresh(tenant, client, clientSecret, req)
	case "password":
		return e.tokenPassword(ctx, tenant, client, clientSecret, req)
	default:
		return errResult(apperr.New(apperr.UnsupportedGrantType, "unsupported grant_type"))
	}
}

func (e *Engine) tokenAuthorizationCode(tenant *model.Tenant, client *model.Client, clientSecret string, req TokenRequest) Result {
	rec, err := e.deps.Codes.Consume(req.Code)
	if err != nil {
		// Replay of an already-consumed code: revoke any refresh family
		// this code previously spawned, per spec §4.6 ("codes are never
		// retriable... revoke any refresh family already spawned from
		// this code").
		if familyID, ok := e.deps.Codes.FamilyOf(req.Code); ok {
			e.deps.Refresh.RevokeFamily(familyID)
		}
		return errResult(apperr.New(apperr.InvalidGrant, "code is unknown, expired, or already used"))
	}

	if rec.ClientID != client.ID {
		return errResult(apperr.New(apperr.InvalidGrant, "code was not issued to this client"))
	}
	if !constantTimeSecretOK(client, clientSecret) {
		return errResult(apperr.New(apperr.InvalidClient, "client authentication failed"))
	}
	if rec.RedirectURI != req.RedirectURI {
		return errResult(apperr.New(apperr.InvalidGrant, "redirect_uri does not match the authorization request"))
	}
	if rec.CodeChallenge != "" {
		if req.CodeVerifier == "" || !crypto.VerifyPKCE(rec.CodeChallengeMethod, req.CodeVerifier, rec.CodeChallenge) {
			return errResult(apperr.New(apperr.InvalidGrant, "code_verifier does not match code_challenge"))
		}
	} else if !client.HasSecret() {
		return errResult(apperr.New(apperr.InvalidGrant, "code_verifier is required for public clients"))
	}

	resp, err := e.issueTokenSet(tenant, client, rec.Subject, rec.Claims, rec.Scope, rec.Nonce)
	if err != nil {
		return errResult(apperr.Wrap("", err))
	}
	e.deps.Codes.MarkFamily(req.Code, resp.familyID)
	return Result{Kind: ResultJSON, JSONBody: resp.body}
}

func (e *Engine) tokenRefresh(tenant *model.Tenant, client *model.Client, clientSecret string, req TokenRequest) Result {
	if !constantTimeSecretOK(client, clientSecret) {
		return errResult(apperr.New(apperr.InvalidClient, "client authentication failed"))
	}

	current, ok := e.deps.Refresh.Get(req.RefreshToken)
	if !ok {
		return errResult(apperr.New(apperr.InvalidGrant, "refresh token is unknown"))
	}
	if current.ClientID != client.ID || current.TenantName != tenant.Name {
		return errResult(apperr.New(apperr.InvalidGrant, "refresh token was not issued to this client"))
	}

	newID, err := crypto.RandomOpaque(32)
	if err != nil {
		return errResult(apperr.Wrap("", err))
	}
	next, err := e.deps.Refresh.Rotate(req.RefreshToken, newID)
	if err != nil {
		return errResult(apperr.New(apperr.InvalidGrant, "refresh token is revoked or expired"))
	}

	access, err := e.deps.Tokens.Issue(token.IssueParams{
		Subject:  next.Subject,
		Audience: client.ID,
		Scope:    joinScope(next.Scope),
		Tenant:   tenant.Name,
		TTL:      accessTokenTTL(tenant),
	}, token.MaxAccessTokenTTL)
	if err != nil {
		return errResult(apperr.Wrap("", err))
	}

	return Result{Kind: ResultJSON, JSONBody: TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL(tenant).Seconds()),
		RefreshToken: next.ID,
		Scope:        joinScope(next.Scope),
	}}
}

func (e *Engine) tokenPassword(ctx context.Context, tenant *model.Tenant, client *model.Client, clientSecret string, req TokenRequest) Result {
	if !tenant.AllowPasswordGrant || !client.AllowsGrant("password") {
		return errResult(apperr.New(apperr.UnauthorizedClient, "password grant is not permitted for this tenant/client"))
	}
	if !constantTimeSecretOK(client, clientSecret) {
		return errResult(apperr.New(apperr.InvalidClient, "client authentication failed"))
	}

	v, err := e.deps.Validators.For(tenant)
	if err != nil {
		return errResult(apperr.Wrap("", err))
	}
	valCtx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := v.Validate(valCtx, tenant, req.Username, req.Password)
	if err != nil {
		if err == validator.ErrRateLimited {
			return errResult(apperr.New(apperr.RateLimited, "too many concurrent validation attempts"))
		}
		return errResult(apperr.New(apperr.AccessDenied, "credential validation failed"))
	}
	if !result.OK {
		return errResult(apperr.New(apperr.AccessDenied, "invalid username or password"))
	}

	finalScope, serr := e.resolveScope(req.Scope, client, tenant)
	if serr != nil {
		return errResult(serr)
	}

	resp, err := e.issueTokenSet(tenant, client, result.Subject, result.Claims, finalScope, "")
	if err != nil {
		return errResult(apperr.Wrap("", err))
	}
	// No SSO cookie is set for the password grant: there is no user agent
	// to carry one (spec §4.8).
	return Result{Kind: ResultJSON, JSONBody: resp.body}
}

type issuedTokenSet struct {
	body     TokenResponse
	familyID string
}

// issueTokenSet mints access + refresh + (optional) id token for a fresh
// grant, per spec §4.2/§4.9.
func (e *Engine) issueTokenSet(tenant *model.Tenant, client *model.Client, subject string,
	validatorClaims map[string]any, grantedScope []string, nonce string) (issuedTokenSet, error) {

	projected := scope.ProjectClaims(validatorClaims, tenant.ClaimAllowList, grantedScope)

	access, err := e.deps.Tokens.Issue(token.IssueParams{
		Subject:  subject,
		Audience: client.ID,
		Scope:    joinScope(grantedScope),
		Tenant:   tenant.Name,
		TTL:      accessTokenTTL(tenant),
		Extra:    projected,
	}, token.MaxAccessTokenTTL)
	if err != nil {
		return issuedTokenSet{}, err
	}

	refreshID, err := crypto.RandomOpaque(32)
	if err != nil {
		return issuedTokenSet{}, err
	}
	familyID := uuid.NewString()
	e.deps.Refresh.PutInitial(refreshID, &model.RefreshToken{
		ID:         refreshID,
		FamilyID:   familyID,
		ClientID:   client.ID,
		TenantName: tenant.Name,
		Subject:    subject,
		Scope:      grantedScope,
		ExpiresAt:  e.deps.now().Add(refreshTokenTTL(tenant)),
	})

	resp := TokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL(tenant).Seconds()),
		RefreshToken: refreshID,
		Scope:        joinScope(grantedScope),
	}

	if hasString(grantedScope, "openid") {
		idToken, err := e.deps.Tokens.Issue(token.IssueParams{
			Subject:  subject,
			Audience: client.ID,
			Scope:    joinScope(grantedScope),
			Tenant:   tenant.Name,
			Nonce:    nonce,
			TTL:      accessTokenTTL(tenant),
			Extra:    projected,
		}, token.MaxAccessTokenTTL)
		if err != nil {
			return issuedTokenSet{}, err
		}
		resp.IDToken = idToken
	}

	return issuedTokenSet{body: resp, familyID: familyID}, nil
}

func accessTokenTTL(tenant *model.Tenant) time.Duration {
	if tenant.TokenTTL <= 0 {
		return token.MaxAccessTokenTTL
	}
	if tenant.TokenTTL > token.MaxAccessTokenTTL {
		return token.MaxAccessTokenTTL
	}
	return tenant.TokenTTL
}

func refreshTokenTTL(tenant *model.Tenant) time.Duration {
	if tenant.RefreshTTL <= 0 {
		return token.MaxRefreshTokenTTL
	}
	if tenant.RefreshTTL > token.MaxRefreshTokenTTL {
		return token.MaxRefreshTokenTTL
	}
	return tenant.RefreshTTL
}
