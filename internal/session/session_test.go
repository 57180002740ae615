package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

func TestResponsibilityHashSilentLoginUsesTenantName(t *testing.T) {
	tenant := &model.Tenant{Name: "acme", SilentLogin: true}

	h1 := ResponsibilityHash(tenant, "a.test")
	h2 := ResponsibilityHash(tenant, "b.test")

	assert.Equal(t, h1, h2, "silent_login tenants hash on tenant name regardless of request domain")
}

func TestResponsibilityHashNonSilentUsesRequestDomain(t *testing.T) {
	tenant := &model.Tenant{Name: "acme", SilentLogin: false}

	h1 := ResponsibilityHash(tenant, "a.test")
	h2 := ResponsibilityHash(tenant, "b.test")

	assert.NotEqual(t, h1, h2)
}

func TestResponsibilityHashUnknownTenantIsEmpty(t *testing.T) {
	assert.Equal(t, "", ResponsibilityHash(nil, "a.test"))
}

func TestMintParseRoundTrip(t *testing.T) {
	m := NewManager([]byte("cookie-secret"), time.Hour)
	tenant := &model.Tenant{Name: "acme", SilentLogin: true}
	respHash := ResponsibilityHash(tenant, "acme")

	name, value, exp, err := m.Mint("alice", tenant, respHash, nil)
	require.NoError(t, err)
	assert.Equal(t, CookieName(respHash), name)
	assert.True(t, exp.After(time.Now()))

	sess, err := m.Parse(value, respHash)
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Subject)
	assert.Equal(t, "acme", sess.TenantName)
}

func TestParseIgnoresMismatchedResponsibilityHash(t *testing.T) {
	m := NewManager([]byte("cookie-secret"), time.Hour)
	tenantA := &model.Tenant{Name: "a", SilentLogin: true}
	respHashA := ResponsibilityHash(tenantA, "a")

	_, value, _, err := m.Mint("alice", tenantA, respHashA, nil)
	require.NoError(t, err)

	// Same cookie value presented against tenant B's responsibility hash.
	respHashB := ResponsibilityHash(&model.Tenant{Name: "b", SilentLogin: true}, "b")
	_, err = m.Parse(value, respHashB)
	assert.ErrorIs(t, err, ErrWrongDomain)
}

func TestParseRejectsTamperedSignature(t *testing.T) {
	m := NewManager([]byte("cookie-secret"), time.Hour)
	tenant := &model.Tenant{Name: "acme", SilentLogin: true}
	respHash := ResponsibilityHash(tenant, "acme")

	_, value, _, err := m.Mint("alice", tenant, respHash, nil)
	require.NoError(t, err)

	tampered := value[:len(value)-1] + "x"
	_, err = m.Parse(tampered, respHash)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager([]byte("cookie-secret"), time.Millisecond)
	tenant := &model.Tenant{Name: "acme", SilentLogin: true}
	respHash := ResponsibilityHash(tenant, "acme")

	_, value, _, err := m.Mint("alice", tenant, respHash, nil)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = m.Parse(value, respHash)
	assert.Error(t, err)
}

func TestRotateProducesFreshIssuedAt(t *testing.T) {
	m := NewManager([]byte("cookie-secret"), time.Hour)
	tenant := &model.Tenant{Name: "acme", SilentLogin: true}
	respHash := ResponsibilityHash(tenant, "acme")

	_, value, _, err := m.Mint("alice", tenant, respHash, nil)
	require.NoError(t, err)
	sess, err := m.Parse(value, respHash)
	require.NoError(t, err)

	_, rotatedValue, _, err := m.Rotate(sess)
	require.NoError(t, err)
	assert.NotEqual(t, value, rotatedValue)

	rotatedSess, err := m.Parse(rotatedValue, respHash)
	require.NoError(t, err)
	assert.Equal(t, sess.Subject, rotatedSess.Subject)
}
