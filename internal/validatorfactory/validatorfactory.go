// Package validatorfactory builds internal/validator.Validator adapters
// from a tenant's registry configuration (spec §9's "validator_kind" +
// free-form config map). Grounded on the teacher's provider-registration
// pattern in cmd/main.go, where each collaborator kind is constructed
// once at startup from config rather than lazily per request, since
// several adapters here (OIDC discovery, SAML metadata fetch) do real
// I/O that must not run on the request path.
package validatorfactory

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crewjam/saml"
	"github.com/crewjam/saml/samlsp"

	"github.com/uitsmijter/uitsmijter/internal/model"
	"github.com/uitsmijter/uitsmijter/internal/validator"
)

// Build constructs the Validator for one tenant, dispatching on
// tenant.ValidatorKind. cfg is tenant.ValidatorConfig.
func Build(ctx context.Context, tenant *model.Tenant) (validator.Validator, error) {
	return build(ctx, tenant.Name, tenant.ValidatorKind, tenant.ValidatorConfig)
}

func build(ctx context.Context, tenantName, kind string, cfg map[string]string) (validator.Validator, error) {
	switch kind {
	case "static":
		return buildStatic(tenantName, cfg)
	case "script":
		delegate, err := build(ctx, tenantName, cfg["delegate_kind"], cfg)
		if err != nil {
			return nil, fmt.Errorf("validatorfactory: script delegate: %w", err)
		}
		return validator.NewScript(cfg["username_regex"], cfg["password_regex"], delegate)
	case "totp":
		delegate, err := build(ctx, tenantName, cfg["delegate_kind"], cfg)
		if err != nil {
			return nil, fmt.Errorf("validatorfactory: totp delegate: %w", err)
		}
		return validator.NewTOTP(delegate, prefixedValues(cfg, "totp_secret.")), nil
	case "oidc":
		return buildOIDC(ctx, cfg)
	case "saml":
		return buildSAML(ctx, cfg)
	default:
		return nil, fmt.Errorf("validatorfactory: unknown validator_kind %q", kind)
	}
}

// buildStatic reads "user.<name>" = "<plaintext password>" entries,
// bucketed under tenantName the same way Static.Validate looks them up.
// NewStatic+AddUser hashes each password immediately; the plaintext
// never enters the returned Validator's state.
func buildStatic(tenantName string, cfg map[string]string) (validator.Validator, error) {
	s := validator.NewStatic(nil)
	for key, password := range cfg {
		username, ok := strings.CutPrefix(key, "user.")
		if !ok {
			continue
		}
		if err := s.AddUser(tenantName, username, password, nil); err != nil {
			return nil, fmt.Errorf("validatorfactory: static user %s: %w", username, err)
		}
	}
	return s, nil
}

// buildOIDC discovers the upstream provider at startup, per spec §9's
// federated-validator design note.
func buildOIDC(ctx context.Context, cfg map[string]string) (validator.Validator, error) {
	return validator.NewOIDC(ctx, validator.OIDCConfig{
		IssuerURL:    cfg["issuer_url"],
		ClientID:     cfg["client_id"],
		ClientSecret: cfg["client_secret"],
		ClaimsMap:    prefixedValues(cfg, "claim."),
	})
}

// buildSAML fetches the upstream IdP's metadata document once at
// startup and binds it to a minimal Service Provider, grounded on the
// teacher's saml.go "METHOD A: fetch metadata from IdP's URL" branch.
func buildSAML(ctx context.Context, cfg map[string]string) (validator.Validator, error) {
	metadataHost := cfg["idp_metadata_host"]
	if metadataHost == "" {
		return nil, fmt.Errorf("validatorfactory: saml requires idp_metadata_host")
	}

	httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	idpMetadata, err := samlsp.FetchMetadata(httpCtx, http.DefaultClient, url.URL{
		Scheme: "https",
		Host:   metadataHost,
		Path:   cfg["idp_metadata_path"],
	})
	if err != nil {
		return nil, fmt.Errorf("validatorfactory: fetch saml metadata: %w", err)
	}

	sp := &saml.ServiceProvider{
		EntityID:    cfg["entity_id"],
		IDPMetadata: idpMetadata,
	}
	return validator.NewSAML(sp), nil
}

// prefixedValues strips prefix from every matching key in cfg.
func prefixedValues(cfg map[string]string, prefix string) map[string]string {
	out := make(map[string]string)
	for key, v := range cfg {
		if name, ok := strings.CutPrefix(key, prefix); ok {
			out[name] = v
		}
	}
	return out
}
