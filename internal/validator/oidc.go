// OIDC federated validator.
//
// Grounded on the teacher's internal/auth/oidc.go, which consumes an
// upstream OIDC provider to authenticate INTO StreamSpace via a redirect
// + authorization-code dance. Uitsmijter IS the IdP for its own clients,
// so that redirect dance has no place here; instead this adapter lets a
// tenant delegate its *credential check* to an upstream IdP using the
// Resource Owner Password Credentials grant (RFC 6749 §4.3) — the
// upstream IdP still does the actual authentication, Uitsmijter's own
// /authorize → /token pipeline is unaffected and still issues its own
// tokens to its own clients. This is the semantic inversion the teacher
// grounding requires (see DESIGN.md).
package validator

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

// OIDCConfig describes one upstream federated IdP, mirroring the fields
// the teacher's OIDCConfig exposes (IssuerURL, ClientID, ClientSecret)
// minus the redirect/callback fields this adapter doesn't use.
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	// ClaimsMap maps upstream ID-token claim names to the claim names
	// this server emits, mirroring providers.go's AttributeMapping.
	ClaimsMap map[string]string
}

// OIDC validates credentials by performing a password-grant token
// exchange against an upstream IdP and extracting claims from the
// returned ID token.
type OIDC struct {
	cfg      OIDCConfig
	provider *oidc.Provider
	oauthCfg oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDC discovers the upstream provider's metadata and constructs an
// OIDC validator. Grounded on oidc.go's NewOIDCAuthenticator.
func NewOIDC(ctx context.Context, cfg OIDCConfig) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("validator: discover oidc provider %s: %w", cfg.IssuerURL, err)
	}

	oauthCfg := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &OIDC{
		cfg:      cfg,
		provider: provider,
		oauthCfg: oauthCfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// Validate exchanges username/password for an upstream token via the
// password grant, verifies the returned ID token, and extracts claims.
// The adapter never logs plaintext credentials, per spec §4.4.
func (o *OIDC) Validate(ctx context.Context, tenant *model.Tenant, username, password string) (model.ValidatorResult, error) {
	token, err := o.oauthCfg.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		return model.ValidatorResult{Reason: "upstream rejected credentials"}, nil
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return model.ValidatorResult{}, fmt.Errorf("validator: upstream token response missing id_token")
	}

	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return model.ValidatorResult{}, fmt.Errorf("validator: verify upstream id_token: %w", err)
	}

	var upstreamClaims map[string]any
	if err := idToken.Claims(&upstreamClaims); err != nil {
		return model.ValidatorResult{}, fmt.Errorf("validator: decode upstream claims: %w", err)
	}

	claims := make(map[string]any, len(upstreamClaims))
	for upstreamName, localName := range o.cfg.ClaimsMap {
		if v, ok := upstreamClaims[upstreamName]; ok {
			claims[localName] = v
		}
	}
	if len(o.cfg.ClaimsMap) == 0 {
		claims = upstreamClaims
	}

	return model.ValidatorResult{OK: true, Subject: idToken.Subject, Claims: claims}, nil
}
