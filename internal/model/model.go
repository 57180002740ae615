// Package model holds the data types shared across the authorization
// engine: tenants, clients, sessions, and the transient records that
// back the authorization-code and refresh-token flows.
package model

import "time"

// Tenant is the administrative boundary owning clients, users, branding
// and a credential validator. Tenants are immutable at runtime; the
// registry reloads them out-of-band and swaps the whole snapshot.
type Tenant struct {
	Name     string
	Hosts    []string
	// SilentLogin, when true, scopes the SSO cookie to the tenant name;
	// when false, to the request's responsibility domain.
	SilentLogin bool

	// ResponsibleDomain is the configured cookie Domain attribute and the
	// responsibility-domain input for non-silent tenants (spec §4.5's
	// "Domain=<tenant-configured>"). Falls back to the request Host when
	// unset, so a tenant that never configures it behaves exactly like
	// one request-domain-scoped boundary per host.
	ResponsibleDomain string

	Informations TenantInformations

	ValidatorKind   string // static | script | oidc | saml | totp
	ValidatorConfig map[string]string

	TokenTTL    time.Duration
	RefreshTTL  time.Duration
	CodeTTL     time.Duration
	ClaimAllowList []string
	AllowedScopes  []string

	// AllowPasswordGrant permits grant_type=password for clients that also allow it.
	AllowPasswordGrant bool
}

// TenantInformations carries optional imprint/privacy/register URLs surfaced
// to the login template (rendering itself is an external collaborator).
type TenantInformations struct {
	Imprint  string
	Privacy  string
	Register string
}

// Client is an OAuth relying party registered under one tenant.
type Client struct {
	ID       string
	Secret   string // empty => public client => PKCE required
	TenantName string

	RedirectURIs  []string
	AllowedScopes []string

	RequirePKCE       bool
	AllowedGrantTypes []string

	TokenEndpointAuthMethod string // client_secret_basic | client_secret_post | none
}

// HasSecret reports whether the client is confidential.
func (c *Client) HasSecret() bool { return c.Secret != "" }

// HasRedirectURI reports whether uri is an exact member of the allow-list.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AllowsGrant reports whether grantType is permitted for this client.
func (c *Client) AllowsGrant(grantType string) bool {
	for _, g := range c.AllowedGrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// SSOCookie is the decoded, verified content of the stateless SSO cookie.
type SSOCookie struct {
	SessionID         string
	Subject           string
	TenantName        string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	ResponsibilityHash string

	// Claims carries the validator's claims forward across silent
	// re-authentications, so a silently-issued code/token still projects
	// the same claims the original /login established.
	Claims map[string]any
}

// AuthorizationCode is the store record backing an opaque authorization code.
type AuthorizationCode struct {
	ClientID            string
	TenantName           string
	Subject              string
	RedirectURI          string
	Scope                []string
	CodeChallenge        string
	CodeChallengeMethod  string
	Nonce                string
	State                string
	ExpiresAt            time.Time
	Consumed             bool

	// Claims is the validator's claims, carried forward so /token can
	// project them into the issued tokens without re-invoking the
	// validator (spec §4.9).
	Claims map[string]any

	// RefreshFamilyID is populated once a refresh family has been spawned
	// from this code, so that a second /token exchange against the same
	// code can revoke it (spec: "codes are never retriable").
	RefreshFamilyID string
}

// Expired reports whether the code has passed its TTL as of now.
func (a *AuthorizationCode) Expired(now time.Time) bool { return now.After(a.ExpiresAt) }

// RefreshToken is the store record for one link in a refresh family chain.
type RefreshToken struct {
	ID         string
	FamilyID   string
	ClientID   string
	TenantName string
	Subject    string
	Scope      []string
	ParentID   string
	ExpiresAt  time.Time
	Revoked    bool
}

// Expired reports whether the token has passed its TTL as of now.
func (r *RefreshToken) Expired(now time.Time) bool { return now.After(r.ExpiresAt) }

// LoginChallenge is the transient per-/authorize record encoded into the
// signed `location` value posted back by the login form.
type LoginChallenge struct {
	ClientID            string
	RedirectURI          string
	Scope                []string
	State                string
	ResponseType         string
	CodeChallenge        string
	CodeChallengeMethod  string
	Nonce                string
	ReturnLocation       string
	Mode                 string
	IssuedAt             time.Time
}

// ValidatorResult is the outcome of a credential validator call.
type ValidatorResult struct {
	OK     bool
	Subject string
	Claims  map[string]any
	Reason  string
}
