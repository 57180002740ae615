package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager([]byte("test-secret"), "https://idp.example.test")
}

func TestIssueDecodeRoundTrip(t *testing.T) {
	m := testManager()

	raw, err := m.Issue(IssueParams{
		Subject:  "alice",
		Audience: "app1",
		Scope:    "openid email",
		Tenant:   "acme",
		TTL:      time.Hour,
	}, MaxAccessTokenTTL)
	require.NoError(t, err)

	claims, err := m.Decode(raw, "app1")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "acme", claims.Tenant)
	assert.Equal(t, "openid email", claims.Scope)
}

func TestIssueFlattensExtraClaims(t *testing.T) {
	m := testManager()

	raw, err := m.Issue(IssueParams{
		Subject:  "alice",
		Audience: "app1",
		TTL:      time.Hour,
		Extra:    map[string]any{"email": "alice@example.test"},
	}, MaxAccessTokenTTL)
	require.NoError(t, err)

	claims, err := m.Decode(raw, "app1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.test", claims.Extra["email"])
}

func TestIssueRejectsExceedingCeiling(t *testing.T) {
	m := testManager()

	_, err := m.Issue(IssueParams{
		Subject:  "alice",
		Audience: "app1",
		TTL:      48 * time.Hour,
	}, MaxAccessTokenTTL)
	assert.Error(t, err)
}

func TestDecodeRejectsWrongAudience(t *testing.T) {
	m := testManager()

	raw, err := m.Issue(IssueParams{Subject: "alice", Audience: "app1", TTL: time.Hour}, MaxAccessTokenTTL)
	require.NoError(t, err)

	_, err = m.Decode(raw, "app2")
	assert.Error(t, err)
}

func TestDecodeRejectsAlgNone(t *testing.T) {
	m := testManager()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   "alice",
			Audience:  jwt.ClaimStrings{"app1"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Decode(raw, "app1")
	assert.Error(t, err)
}

func TestDecodeRejectsExpired(t *testing.T) {
	m := testManager()

	raw, err := m.Issue(IssueParams{Subject: "alice", Audience: "app1", TTL: time.Millisecond}, MaxAccessTokenTTL)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = m.Decode(raw, "app1")
	assert.Error(t, err)
}
