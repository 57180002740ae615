// Package middleware provides HTTP middleware for the authorization server.
// This file implements path-traversal guarding for the request path.
//
// Trimmed down from the teacher's broader input-validation middleware: the
// SQL/command/LDAP injection heuristics it also carried operate on raw
// query-parameter values, which here routinely ARE untrusted-looking
// strings by design — a redirect_uri legitimately carries its own query
// string (so decoded values contain '&', '='), and a PKCE code_verifier
// or opaque code is 43+ characters of near-random base64url. Scanning
// those for SQL/shell metacharacters produces false positives against
// entirely valid OAuth traffic, not real attacks; this domain's actual
// request-shape defenses are spec-level (exact redirect_uri match,
// scope/client allow-lists, signature verification), not generic string
// heuristics. The Kubernetes resource/namespace/image/quantity validators
// the teacher also carried here have no counterpart in an OAuth/OIDC
// authorization server and are dropped along with their bluemonday
// dependency (see DESIGN.md).
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// InputValidator guards the request path against traversal attempts.
type InputValidator struct{}

// NewInputValidator constructs an InputValidator.
func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// Middleware rejects any request whose path contains a traversal
// sequence or a null byte, before routing decides anything else.
func (v *InputValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := v.validatePath(c.Request.URL.Path); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": err.Error(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// validatePath checks for path traversal attempts.
func (v *InputValidator) validatePath(path string) error {
	pathTraversalPatterns := []string{
		"../", "..\\", "/..", "\\..",
		"%2e%2e", "%252e%252e", "..%2f", "..%5c",
	}

	lowerPath := strings.ToLower(path)
	for _, pattern := range pathTraversalPatterns {
		if strings.Contains(lowerPath, pattern) {
			return fmt.Errorf("path traversal attempt detected")
		}
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("null byte detected in path")
	}
	return nil
}
