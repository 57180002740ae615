// Package token encodes and decodes the signed JWTs (access and id
// tokens) issued by the flow engine; refresh tokens are opaque ids held by
// internal/refresh, not JWTs. It enforces the
// expiry ceilings and audience/issuer checks from spec §4.2.
//
// Grounded on the teacher's internal/auth/jwt.go JWTManager, generalized
// from a single-purpose session-JWT to the three token kinds this
// authorization server issues, and narrowed to reject anything but the
// configured signing method (no "none", no algorithm substitution).
package token

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Ceilings enforced by the encoder, per spec §4.2.
const (
	MaxAccessTokenTTL  = 24 * time.Hour
	MaxRefreshTokenTTL = 90 * 24 * time.Hour
)

// ClockSkew is the allowed leeway for iat validation, per spec §4.2
// ("iat ≤ now + 60s").
const ClockSkew = 60 * time.Second

// Claims is the payload carried by access and ID tokens. Extra holds the
// validator claims projected by internal/scope.ProjectClaims (e.g.
// email, name) and is flattened into the top-level JWT payload by
// MarshalJSON/UnmarshalJSON, as OIDC expects claims alongside the
// registered ones rather than nested under an "extra" key.
type Claims struct {
	jwt.RegisteredClaims
	Scope  string         `json:"scope,omitempty"`
	Tenant string         `json:"tenant"`
	Nonce  string         `json:"nonce,omitempty"`
	Extra  map[string]any `json:"-"`
}

// claimsAlias avoids infinite recursion in Claims' custom (Un)MarshalJSON.
type claimsAlias Claims

// MarshalJSON flattens Extra's entries alongside the struct's own fields.
func (c Claims) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(claimsAlias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return base, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON recovers the registered/named fields normally, then
// collects any remaining keys back into Extra.
func (c *Claims) UnmarshalJSON(data []byte) error {
	var alias claimsAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Claims(alias)

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, known := range []string{"iss", "sub", "aud", "exp", "nbf", "iat", "jti", "scope", "tenant", "nonce"} {
		delete(raw, known)
	}
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// Manager signs and verifies JWTs with a single HMAC secret (HS256). It is
// a concrete type, not an interface; there is no RS256 signing path.
type Manager struct {
	secret []byte
	issuer string
}

// NewManager constructs a token Manager bound to a signing secret and
// issuer (the server's base URL, used as `iss`).
func NewManager(secret []byte, issuer string) *Manager {
	return &Manager{secret: secret, issuer: issuer}
}

// IssueParams describes one token to be minted.
type IssueParams struct {
	Subject  string
	Audience string // client id
	Scope    string
	Tenant   string
	Nonce    string
	TTL      time.Duration
	Extra    map[string]any
}

// Issue signs a new compact JWT for the given params. It refuses to emit a
// token whose TTL exceeds ceiling, per spec §4.2.
func (m *Manager) Issue(p IssueParams, ceiling time.Duration) (string, error) {
	if p.TTL <= 0 || p.TTL > ceiling {
		return "", fmt.Errorf("token: requested ttl %s exceeds ceiling %s", p.TTL, ceiling)
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings{p.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
		},
		Scope:  p.Scope,
		Tenant: p.Tenant,
		Nonce:  p.Nonce,
		Extra:  p.Extra,
	}

	signed := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	str, err := signed.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return str, nil
}

// Decode verifies signature, issuer, audience, expiry, and clock skew for
// a compact JWT, per spec §4.2's decoder invariants.
func (m *Manager) Decode(raw, expectedAudience string) (*Claims, error) {
	claims, err := m.decode(raw)
	if err != nil {
		return nil, err
	}
	if !hasAudience(claims.Audience, expectedAudience) {
		return nil, fmt.Errorf("token: audience mismatch")
	}
	return claims, nil
}

// DecodeAny verifies a compact JWT the same way Decode does, except it
// does not check the audience — for endpoints like /userinfo that accept
// a bearer token issued to any of the server's own registered clients.
func (m *Manager) DecodeAny(raw string) (*Claims, error) {
	return m.decode(raw)
}

func (m *Manager) decode(raw string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject alg:none and any algorithm substitution; only accept HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("token: unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("token: invalid")
	}

	if claims.Issuer != m.issuer {
		return nil, fmt.Errorf("token: issuer mismatch")
	}

	now := time.Now()
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("token: expired")
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(now.Add(ClockSkew)) {
		return nil, fmt.Errorf("token: issued in the future")
	}

	return claims, nil
}

func hasAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
