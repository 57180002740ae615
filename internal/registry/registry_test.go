package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
tenants:
  - name: acme
    hosts: ["acme.test"]
    silent_login: true
    validator_kind: static
    allowed_scopes: ["openid", "email"]
    claim_allow_list: ["email", "email_verified"]
clients:
  - id: app1
    secret: s3cr3t
    tenant_name: acme
    redirect_uris: ["https://app1.test/cb"]
    allowed_scopes: ["openid", "email"]
    allowed_grant_types: ["authorization_code", "refresh_token"]
`

func TestLoadAndLookup(t *testing.T) {
	r := New()
	require.NoError(t, r.Load([]byte(testYAML)))

	tenant, err := r.LookupTenantByHost("acme.test")
	require.NoError(t, err)
	assert.Equal(t, "acme", tenant.Name)
	assert.True(t, tenant.SilentLogin)

	client, err := r.LookupClient("app1")
	require.NoError(t, err)
	assert.True(t, client.HasSecret())
	assert.True(t, client.HasRedirectURI("https://app1.test/cb"))
	assert.False(t, client.HasRedirectURI("https://evil.test/"))
}

func TestClientsForTenant(t *testing.T) {
	r := New()
	require.NoError(t, r.Load([]byte(testYAML)))

	clients := r.ClientsForTenant("acme")
	require.Len(t, clients, 1)
	assert.Equal(t, "app1", clients[0].ID)

	assert.Empty(t, r.ClientsForTenant("unknown-tenant"))
}

func TestLookupMissReturnsErrNotFound(t *testing.T) {
	r := New()
	require.NoError(t, r.Load([]byte(testYAML)))

	_, err := r.LookupTenantByHost("unknown.test")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.LookupClient("unknown-client")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSwapIsAtomic(t *testing.T) {
	r := New()
	require.NoError(t, r.Load([]byte(testYAML)))

	_, err := r.LookupTenantByHost("acme.test")
	require.NoError(t, err)

	// Reloading with an empty file swaps the whole snapshot; no request
	// observes a mix of old and new tenants.
	require.NoError(t, r.Load([]byte("tenants: []\nclients: []\n")))

	_, err = r.LookupTenantByHost("acme.test")
	assert.ErrorIs(t, err, ErrNotFound)
}
