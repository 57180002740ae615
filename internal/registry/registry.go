// Package registry provides the read-only tenant/client lookup the flow
// engine depends on. It loads a YAML snapshot and swaps it in atomically
// so that no in-flight request ever observes a half-applied reload.
//
// Grounded on the teacher's general snapshot-swap convention for
// externally-sourced configuration (cmd/main.go's informer-cache pattern),
// adapted here from "watch Kubernetes objects" to "reload a YAML file",
// since this domain has no Kubernetes orchestration surface (see
// DESIGN.md).
package registry

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

type durationSeconds int

func (d durationSeconds) toDuration() time.Duration { return time.Duration(d) * time.Second }

// ErrNotFound is returned by lookups that miss.
var ErrNotFound = fmt.Errorf("registry: not found")

// file is the on-disk YAML shape.
type file struct {
	Tenants []yamlTenant `yaml:"tenants"`
	Clients []yamlClient `yaml:"clients"`
}

type yamlTenant struct {
	Name               string   `yaml:"name"`
	Hosts              []string `yaml:"hosts"`
	SilentLogin        bool     `yaml:"silent_login"`
	ResponsibleDomain  string   `yaml:"responsible_domain"`
	Imprint            string   `yaml:"imprint"`
	Privacy            string   `yaml:"privacy"`
	Register           string   `yaml:"register"`
	ValidatorKind      string   `yaml:"validator_kind"`
	ValidatorConfig    map[string]string `yaml:"validator_config"`
	TokenTTLSeconds    int      `yaml:"token_ttl_seconds"`
	RefreshTTLSeconds  int      `yaml:"refresh_ttl_seconds"`
	CodeTTLSeconds     int      `yaml:"code_ttl_seconds"`
	ClaimAllowList     []string `yaml:"claim_allow_list"`
	AllowedScopes      []string `yaml:"allowed_scopes"`
	AllowPasswordGrant bool     `yaml:"allow_password_grant"`
}

type yamlClient struct {
	ID                      string   `yaml:"id"`
	Secret                  string   `yaml:"secret"`
	TenantName              string   `yaml:"tenant_name"`
	RedirectURIs            []string `yaml:"redirect_uris"`
	AllowedScopes           []string `yaml:"allowed_scopes"`
	RequirePKCE             bool     `yaml:"require_pkce"`
	AllowedGrantTypes       []string `yaml:"allowed_grant_types"`
	TokenEndpointAuthMethod string   `yaml:"token_endpoint_auth_method"`
}

// snapshot is the immutable in-memory view of one loaded registry file.
type snapshot struct {
	tenantsByName map[string]*model.Tenant
	tenantsByHost map[string]*model.Tenant
	clients       map[string]*model.Client
}

// Registry exposes lookup_tenant and lookup_client per spec §4.3, backed
// by an atomically-swapped snapshot.
type Registry struct {
	current atomic.Pointer[snapshot]
}

// New constructs an empty Registry. Call Load or LoadFile before use.
func New() *Registry {
	r := &Registry{}
	r.current.Store(&snapshot{
		tenantsByName: map[string]*model.Tenant{},
		tenantsByHost: map[string]*model.Tenant{},
		clients:       map[string]*model.Client{},
	})
	return r
}

// LoadFile reads and parses a YAML registry file and swaps it in.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("registry: read %s: %w", path, err)
	}
	return r.Load(data)
}

// Load parses YAML bytes into a new snapshot and swaps it in atomically.
// Concurrent lookups never observe a half-applied reload: the old
// snapshot stays live until this call completes, then every new lookup
// sees the new one.
func (r *Registry) Load(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("registry: parse: %w", err)
	}

	next := &snapshot{
		tenantsByName: make(map[string]*model.Tenant, len(f.Tenants)),
		tenantsByHost: make(map[string]*model.Tenant, len(f.Tenants)),
		clients:       make(map[string]*model.Client, len(f.Clients)),
	}

	for _, yt := range f.Tenants {
		t := &model.Tenant{
			Name:              yt.Name,
			Hosts:             yt.Hosts,
			SilentLogin:       yt.SilentLogin,
			ResponsibleDomain: yt.ResponsibleDomain,
			Informations: model.TenantInformations{
				Imprint:  yt.Imprint,
				Privacy:  yt.Privacy,
				Register: yt.Register,
			},
			ValidatorKind:      yt.ValidatorKind,
			ValidatorConfig:    yt.ValidatorConfig,
			TokenTTL:           secondsOrDefault(yt.TokenTTLSeconds, 3600).toDuration(),
			RefreshTTL:         secondsOrDefault(yt.RefreshTTLSeconds, 2592000).toDuration(),
			CodeTTL:            secondsOrDefault(yt.CodeTTLSeconds, 60).toDuration(),
			ClaimAllowList:     yt.ClaimAllowList,
			AllowedScopes:      yt.AllowedScopes,
			AllowPasswordGrant: yt.AllowPasswordGrant,
		}
		next.tenantsByName[t.Name] = t
		for _, h := range t.Hosts {
			next.tenantsByHost[h] = t
		}
	}

	for _, yc := range f.Clients {
		next.clients[yc.ID] = &model.Client{
			ID:                      yc.ID,
			Secret:                  yc.Secret,
			TenantName:              yc.TenantName,
			RedirectURIs:            yc.RedirectURIs,
			AllowedScopes:           yc.AllowedScopes,
			RequirePKCE:             yc.RequirePKCE,
			AllowedGrantTypes:       yc.AllowedGrantTypes,
			TokenEndpointAuthMethod: yc.TokenEndpointAuthMethod,
		}
	}

	r.current.Store(next)
	return nil
}

func secondsOrDefault(v int, def int) (d durationSeconds) {
	if v <= 0 {
		v = def
	}
	return durationSeconds(v)
}

// TenantNames returns every tenant name in the current snapshot, for
// startup-time wiring (e.g. constructing each tenant's validator) that
// needs to enumerate tenants rather than look one up.
func (r *Registry) TenantNames() []string {
	snap := r.current.Load()
	names := make([]string, 0, len(snap.tenantsByName))
	for name := range snap.tenantsByName {
		names = append(names, name)
	}
	return names
}

// LookupTenantByHost returns the tenant routed to by a request's Host
// header, or ErrNotFound.
func (r *Registry) LookupTenantByHost(host string) (*model.Tenant, error) {
	snap := r.current.Load()
	t, ok := snap.tenantsByHost[host]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// LookupTenantByName returns a tenant by its configured name, or
// ErrNotFound.
func (r *Registry) LookupTenantByName(name string) (*model.Tenant, error) {
	snap := r.current.Load()
	t, ok := snap.tenantsByName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// LookupClient returns a client by id, or ErrNotFound.
func (r *Registry) LookupClient(clientID string) (*model.Client, error) {
	snap := r.current.Load()
	c, ok := snap.clients[clientID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// ClientsForTenant returns every client registered under tenantName, for
// the /logout post_logout_redirect_uri allow-list check (spec §9).
func (r *Registry) ClientsForTenant(tenantName string) []*model.Client {
	snap := r.current.Load()
	var out []*model.Client
	for _, c := range snap.clients {
		if c.TenantName == tenantName {
			out = append(out, c)
		}
	}
	return out
}
