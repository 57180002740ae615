// Package session mints, parses, rotates, and revokes the SSO cookie, and
// computes the responsibility-domain hash that scopes it.
//
// Grounded on spec §4.5 and the teacher's general HMAC-signing convention
// (internal/auth/jwt.go); deliberately does NOT reuse the teacher's
// Redis-backed internal/auth/session_store.go, because that store tracks
// sessions server-side, which contradicts this component's "stateless
// rotation" invariant (DESIGN.md explains the deletion).
package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/model"
)

// CookieNamePrefix is the stable prefix for SSO cookie names, per spec §6.
const CookieNamePrefix = "uitsmijter-sso-"

// DefaultSessionTTL is the default SSO cookie lifetime, per spec §5
// ("SSO cookie ≤ 8h default").
const DefaultSessionTTL = 8 * time.Hour

// ResponsibilityHash implements the central invariant from spec §4.5:
//
//	if tenant.silent_login == true:   hash = H(tenant.name)
//	else:                             hash = H(request.responsible_domain)
//
// SPEC_FULL.md resolves the open question of which hash function to use
// to SHA-256 (spec's own recommendation), and this function always uses
// it; internal/crypto still exports SHA1Hex, but nothing here selects it.
func ResponsibilityHash(tenant *model.Tenant, responsibleDomain string) string {
	if tenant == nil {
		return ""
	}
	if tenant.SilentLogin {
		return crypto.SHA256Hex(tenant.Name)
	}
	return crypto.SHA256Hex(responsibleDomain)
}

// CookieName returns the cookie name bound to a responsibility hash.
func CookieName(respHash string) string {
	return CookieNamePrefix + respHash
}

// Manager mints, parses, rotates, and revokes SSO cookies.
type Manager struct {
	secret     []byte
	sessionTTL time.Duration
}

// NewManager constructs a session Manager bound to a signing secret.
func NewManager(secret []byte, sessionTTL time.Duration) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Manager{secret: secret, sessionTTL: sessionTTL}
}

// payload is the JSON body signed inside the cookie value.
type payload struct {
	SessionID  string         `json:"sid"`
	Subject    string         `json:"sub"`
	TenantName string         `json:"tenant"`
	IssuedAt   time.Time      `json:"iat"`
	ExpiresAt  time.Time      `json:"exp"`
	RespHash   string         `json:"rh"`
	Claims     map[string]any `json:"claims,omitempty"`
}

// encode signs p and returns the opaque cookie value "<payload>.<mac>",
// both base64url(no padding) encoded.
func (m *Manager) encode(p payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("session: marshal: %w", err)
	}
	encBody := base64.RawURLEncoding.EncodeToString(body)
	mac := crypto.HMACSHA256(m.secret, []byte(encBody))
	encMac := base64.RawURLEncoding.EncodeToString(mac)
	return encBody + "." + encMac, nil
}

// decode verifies and parses an opaque cookie value.
func (m *Manager) decode(value string) (*payload, error) {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("session: malformed cookie")
	}
	encBody, encMac := parts[0], parts[1]

	mac, err := base64.RawURLEncoding.DecodeString(encMac)
	if err != nil {
		return nil, fmt.Errorf("session: bad mac encoding: %w", err)
	}
	if !crypto.VerifyHMACSHA256(m.secret, []byte(encBody), mac) {
		return nil, fmt.Errorf("session: signature mismatch")
	}

	body, err := base64.RawURLEncoding.DecodeString(encBody)
	if err != nil {
		return nil, fmt.Errorf("session: bad body encoding: %w", err)
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return &p, nil
}

// Mint writes a new signed cookie value for (subject, tenant, respHash).
// Returns the cookie name and value; the caller (internal/httpapi) sets
// the HttpOnly/Secure/SameSite=Lax attributes per spec §6.
func (m *Manager) Mint(subject string, tenant *model.Tenant, respHash string, claims map[string]any) (name, value string, expiresAt time.Time, err error) {
	if tenant == nil || respHash == "" {
		return "", "", time.Time{}, fmt.Errorf("session: cannot mint without a resolved tenant")
	}
	now := time.Now()
	exp := now.Add(m.sessionTTL)
	p := payload{
		SessionID:  uuid.NewString(),
		Subject:    subject,
		TenantName: tenant.Name,
		IssuedAt:   now,
		ExpiresAt:  exp,
		RespHash:   respHash,
		Claims:     claims,
	}
	v, err := m.encode(p)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return CookieName(respHash), v, exp, nil
}

// Parse verifies signature and expiry and returns the embedded session,
// but ONLY if its responsibility hash matches currentRespHash. A cookie
// whose hash differs is ignored (not an error, not deleted) — this is
// invariant 3 / scenario S3: cookies never cross a responsibility domain.
func (m *Manager) Parse(cookieValue, currentRespHash string) (*model.SSOCookie, error) {
	p, err := m.decode(cookieValue)
	if err != nil {
		return nil, err
	}
	if p.RespHash != currentRespHash {
		return nil, ErrWrongDomain
	}
	if time.Now().After(p.ExpiresAt) {
		return nil, fmt.Errorf("session: expired")
	}
	return &model.SSOCookie{
		SessionID:          p.SessionID,
		Subject:            p.Subject,
		TenantName:         p.TenantName,
		IssuedAt:           p.IssuedAt,
		ExpiresAt:          p.ExpiresAt,
		ResponsibilityHash: p.RespHash,
		Claims:             p.Claims,
	}, nil
}

// ErrWrongDomain is returned by Parse when a cookie's responsibility hash
// does not match the current request's. Callers must treat this exactly
// like "no cookie" (render the login page), never as an error response.
var ErrWrongDomain = fmt.Errorf("session: cookie responsibility hash mismatch")

// Rotate re-signs a valid session with a fresh issued_at on every
// read-hit. The prior cookie value is not tracked server-side — rotation
// is stateless, per spec §4.5.
func (m *Manager) Rotate(s *model.SSOCookie) (name, value string, expiresAt time.Time, err error) {
	now := time.Now()
	exp := now.Add(m.sessionTTL)
	p := payload{
		SessionID:  s.SessionID,
		Subject:    s.Subject,
		TenantName: s.TenantName,
		IssuedAt:   now,
		ExpiresAt:  exp,
		RespHash:   s.ResponsibilityHash,
		Claims:     s.Claims,
	}
	v, err := m.encode(p)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return CookieName(s.ResponsibilityHash), v, exp, nil
}

// RevokeCookieName returns the cookie name to clear via Set-Cookie with
// Max-Age=0 for /logout.
func RevokeCookieName(respHash string) string {
	return CookieName(respHash)
}
