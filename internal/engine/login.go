package engine

import (
	"context"

	"github.com/uitsmijter/uitsmijter/internal/apperr"
	"github.com/uitsmijter/uitsmijter/internal/logger"
	"github.com/uitsmijter/uitsmijter/internal/session"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// LoginRequest carries the POST /login form fields plus the
// responsibility-domain input, which internal/httpapi's /login handler
// fills from Server.responsibleDomain before the engine runs.
type LoginRequest struct {
	Location          string
	Username          string
	Password          string
	Mode              string
	ResponsibleDomain string
}

// Login implements spec §4.8's /login algorithm.
func (e *Engine) Login(ctx context.Context, req LoginRequest) Result {
	lc, tenantName, err := e.DecodeChallenge(req.Location)
	if err != nil {
		return errResult(apperr.New(apperr.InvalidRequest, "login challenge is invalid or has expired"))
	}

	tenant, err := e.deps.Registry.LookupTenantByName(tenantName)
	if err != nil {
		return errResult(apperr.New(apperr.InvalidRequest, "unknown tenant"))
	}

	client, err := e.deps.Registry.LookupClient(lc.ClientID)
	if err != nil || client.TenantName != tenant.Name {
		return errResult(apperr.New(apperr.InvalidClient, "unknown client"))
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
		logger.Security().Warn().Err(err).Str("tenant", tenant.Name).Msg("credential validator call failed")
		return Result{Kind: ResultRenderLogin, LoginChallenge: lc, LoginError: "access_denied"}
	}
	if !result.OK {
		return Result{Kind: ResultRenderLogin, LoginChallenge: lc, LoginError: "access_denied"}
	}

	respHash := session.ResponsibilityHash(tenant, req.ResponsibleDomain)
	if respHash == "" {
		return errResult(apperr.New(apperr.InvalidRequest, "cannot establish a session without a resolved tenant"))
	}

	claims := result.Claims
	if claims == nil {
		claims = map[string]any{}
	}

	return e.issueCode(tenant, client, lc.ResponseType, lc.RedirectURI, lc.Scope, lc.State,
		lc.CodeChallenge, lc.CodeChallengeMethod, lc.Nonce, result.Subject, respHash, nil, claims)
}
