// Package httpapi is the gin transport adapter over internal/engine. It
// owns everything the engine explicitly does not: reading *http.Request,
// writing gin.Context responses, Set-Cookie headers, and the RFC 6749
// §5.2 wire format. No protocol decision lives here — every branch is
// already made by internal/engine; this package only marshals in and out.
//
// Grounded on the teacher's gin wiring style in cmd/main.go (route
// groups, middleware chain order, JSON error responses) and the
// separation from internal/auth the engine package itself documents.
package httpapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uitsmijter/uitsmijter/internal/apperr"
	"github.com/uitsmijter/uitsmijter/internal/engine"
	"github.com/uitsmijter/uitsmijter/internal/logger"
	"github.com/uitsmijter/uitsmijter/internal/middleware"
	"github.com/uitsmijter/uitsmijter/internal/model"
	"github.com/uitsmijter/uitsmijter/internal/ratelimit"
	"github.com/uitsmijter/uitsmijter/internal/registry"
)

// LoginRenderer renders the tenant's login page. Its implementation
// (HTML templating) is an explicit external collaborator per spec §1 —
// this package only names the contract it calls with the resolved
// LoginChallenge and, on a failed attempt, the wire error code to display.
type LoginRenderer interface {
	RenderLogin(c *gin.Context, tenant *model.Tenant, lc *model.LoginChallenge, loginError string)
}

// JSONLoginRenderer is the default LoginRenderer: it renders the login
// challenge as a JSON document instead of HTML, since no template engine
// is in scope here. A real deployment supplies its own LoginRenderer
// wired to whatever template system renders the branded login page.
type JSONLoginRenderer struct{}

// RenderLogin implements LoginRenderer.
func (JSONLoginRenderer) RenderLogin(c *gin.Context, tenant *model.Tenant, lc *model.LoginChallenge, loginError string) {
	body := gin.H{
		"tenant":      tenant.Name,
		"serviceUrl":  "/login",
		"requestUri":  lc.ReturnLocation,
		"mode":        lc.Mode,
		"requestInfo": tenant.Informations,
	}
	if loginError != "" {
		body["error"] = loginError
	}
	c.JSON(http.StatusOK, body)
}

// Server bundles the wired engine plus the collaborators the transport
// layer itself needs (rate limiters, cookie domain policy, login
// rendering) that internal/engine has no business knowing about.
type Server struct {
	Engine   *engine.Engine
	Registry *registry.Registry
	Renderer LoginRenderer

	// LoginLimiter / TokenLimiter implement spec §5's "per-IP and
	// per-client counters... protect /token and /login". Both are
	// optional; a nil limiter allows every request.
	LoginLimiter *ratelimit.Limiter
	TokenLimiter *ratelimit.Limiter

	// BaseURL is this server's own issuer URL, surfaced in
	// /.well-known/openid-configuration.
	BaseURL string
}

// NewRouter builds the gin.Engine exposing spec §6's HTTP surface,
// wrapped in the teacher's ordered middleware chain (recovery → request
// id → structured logging → security headers → method restriction → size
// limits → timeout → input validation), adapted to this domain in
// cmd/uitsmijter-server.
func NewRouter(srv *Server) *gin.Engine {
	if srv.Renderer == nil {
		srv.Renderer = JSONLoginRenderer{}
	}

	r := gin.New()
	r.Use(gin.Recovery())

	// Ordered middleware chain, per the teacher's cmd/main.go convention:
	// correlate first, then observe, then harden, then bound resource
	// usage, before any route-specific handling runs.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.DisallowedHTTPMethods())
	r.Use(middleware.DefaultSizeLimiter())
	r.Use(middleware.TimeoutWithDuration(10 * time.Second))
	r.Use(middleware.NewInputValidator().Middleware())

	r.GET("/.well-known/openid-configuration", srv.handleOpenIDConfiguration)
	r.GET("/jwks.json", srv.handleJWKS)

	r.GET("/authorize", srv.withRateLimit(srv.LoginLimiter, clientIPKey), srv.handleAuthorize)
	r.POST("/login", middleware.JSONSizeLimiter(), srv.withRateLimit(srv.LoginLimiter, clientIPKey), srv.handleLogin)
	r.POST("/token", middleware.JSONSizeLimiter(), srv.withRateLimit(srv.TokenLimiter, tokenClientKey), srv.handleToken)
	r.GET("/userinfo", srv.handleUserinfo)
	r.GET("/logout", srv.handleLogout)

	return r
}

// withRateLimit translates spec §5's token-bucket policy into a 429
// rate_limited response. The limiter runs before the handler looks at any
// credential, so the 429 is the same whether the credentials were valid
// or not.
func (s *Server) withRateLimit(l *ratelimit.Limiter, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		if !l.Allow(keyFn(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apperr.New(apperr.RateLimited, "too many requests").ToResponse())
			return
		}
		c.Next()
	}
}

func clientIPKey(c *gin.Context) string { return c.ClientIP() }

func tokenClientKey(c *gin.Context) string {
	if id := c.PostForm("client_id"); id != "" {
		return id
	}
	if id, _, ok := c.Request.BasicAuth(); ok {
		return id
	}
	return c.ClientIP()
}

// writeResult translates an engine.Result into the actual HTTP response,
// per spec §7's propagation policy: redirects carry `error`/`state` on
// failure, everything else gets a JSON body with the right status code.
func (s *Server) writeResult(c *gin.Context, res engine.Result) {
	if res.SetCookie != nil {
		setCookie(c, res.SetCookie, s.cookieDomain(c))
	}

	switch res.Kind {
	case engine.ResultRedirect:
		c.Redirect(http.StatusFound, res.RedirectURL)
	case engine.ResultRenderLogin:
		tenant, err := s.Registry.LookupTenantByHost(c.Request.Host)
		if err != nil {
			c.JSON(http.StatusNotFound, apperr.New(apperr.InvalidRequest, "unknown tenant for this host").ToResponse())
			return
		}
		s.Renderer.RenderLogin(c, tenant, res.LoginChallenge, res.LoginError)
	case engine.ResultJSON:
		c.JSON(http.StatusOK, res.JSONBody)
	case engine.ResultError:
		writeOAuthError(c, res)
	}
}

// writeOAuthError renders spec §7's error kinds. Once redirect_uri has
// already passed exact-match validation (res.ErrRedirectURI set), it
// redirects with ?error=&state= per spec §6 instead of writing JSON; every
// earlier failure (unknown tenant/client, unregistered redirect_uri) still
// gets RFC 6749 §5.2 JSON. A server_error is logged at error level with
// the error's RequestID field, which is empty for the engine's errors
// (they are built with apperr.Wrap("", err)); the wrapped error itself is
// not logged here, and the caller only sees the opaque kind/description.
func writeOAuthError(c *gin.Context, res engine.Result) {
	err := res.Err
	if err == nil {
		err = apperr.New(apperr.ServerError, "an unexpected error occurred")
	}
	if err.Kind == apperr.ServerError {
		logger.HTTP().Error().Str("request_id", err.RequestID).Msg("server_error returned to client")
	}
	if res.ErrRedirectURI != "" {
		q := url.Values{"error": {err.Kind}}
		if res.ErrState != "" {
			q.Set("state", res.ErrState)
		}
		c.Redirect(http.StatusFound, res.ErrRedirectURI+"?"+q.Encode())
		return
	}
	c.JSON(err.StatusCode, err.ToResponse())
}

// cookieDomain resolves the Domain attribute for Set-Cookie, per spec
// §4.5: "Domain=<tenant-configured>". Falls back to no explicit domain
// (host-only cookie) when the current host has no registered tenant or
// the tenant left it unset.
func (s *Server) cookieDomain(c *gin.Context) string {
	tenant, err := s.Registry.LookupTenantByHost(c.Request.Host)
	if err != nil {
		return ""
	}
	return tenant.ResponsibleDomain
}

func setCookie(c *gin.Context, d *engine.CookieDirective, domain string) {
	maxAge := int(time.Until(d.ExpiresAt).Seconds())
	if d.MaxAgeZero {
		maxAge = -1
	}
	// HttpOnly; Secure; SameSite=Lax; Path=/, per spec §6.
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(d.Name, d.Value, maxAge, "/", domain, true, true)
}
