// SAML assertion validator.
//
// Grounded on the teacher's internal/auth/saml.go Service Provider
// integration (github.com/crewjam/saml). SAML is fundamentally a
// browser-redirect/POST-binding protocol, not a synchronous
// username+password RPC, so this adapter reuses the fixed Validator
// shape the way spec §9's design note anticipates for "external RPC"
// validators: the tenant's login form posts the base64-encoded SAML
// response it already received from the IdP (ECP-style) as the
// `password` field, and `username` is advisory only — the actual
// subject comes from the verified assertion, never from the form.
package validator

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/crewjam/saml"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

// SAML validates a base64-encoded SAML response against a configured
// Service Provider.
type SAML struct {
	sp *saml.ServiceProvider
}

// NewSAML constructs a SAML validator around an already-configured
// Service Provider (metadata/certificates loaded the way providers.go's
// LoadCertificate/LoadPrivateKey do).
func NewSAML(sp *saml.ServiceProvider) *SAML {
	return &SAML{sp: sp}
}

// Validate decodes and verifies the SAML response carried in password,
// per this adapter's documented (username ignored, password=assertion)
// convention.
func (s *SAML) Validate(ctx context.Context, tenant *model.Tenant, username, password string) (model.ValidatorResult, error) {
	raw, err := base64.StdEncoding.DecodeString(password)
	if err != nil {
		return model.ValidatorResult{Reason: "malformed saml response"}, nil
	}

	// ParseXMLResponse verifies signature, audience, and conditions; a
	// forged or expired assertion is rejected here.
	assertion, err := s.sp.ParseXMLResponse(raw, []string{})
	if err != nil {
		return model.ValidatorResult{Reason: "invalid saml assertion"}, nil
	}

	subject, claims := extractSAMLIdentity(assertion)
	if subject == "" {
		return model.ValidatorResult{}, fmt.Errorf("validator: saml assertion missing subject")
	}
	return model.ValidatorResult{OK: true, Subject: subject, Claims: claims}, nil
}

// extractSAMLIdentity pulls the NameID and attribute statements out of a
// verified assertion, mirroring providers.go's AttributeMapping intent.
func extractSAMLIdentity(assertion *saml.Assertion) (string, map[string]any) {
	claims := map[string]any{}
	if assertion == nil || assertion.Subject == nil || assertion.Subject.NameID == nil {
		return "", claims
	}

	for _, stmt := range assertion.AttributeStatements {
		for _, attr := range stmt.Attributes {
			if len(attr.Values) == 0 {
				continue
			}
			if len(attr.Values) == 1 {
				claims[attr.Name] = attr.Values[0].Value
				continue
			}
			values := make([]string, 0, len(attr.Values))
			for _, v := range attr.Values {
				values = append(values, v.Value)
			}
			claims[attr.Name] = values
		}
	}

	return assertion.Subject.NameID.Value, claims
}
