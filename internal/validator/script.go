package validator

import (
	"context"
	"fmt"
	"regexp"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

// Script is a regex-based predicate validator, matching spec §9's "Regex-
// based credential validator scripts" design note. It never evaluates an
// embeddable scripting language directly (no code execution of tenant
// input); instead it composes a username pattern and a password-shape
// pattern with a delegate that supplies the actual secret check, so that
// tenants can restrict which usernames/password shapes even reach the
// delegate without the delegate ever seeing out-of-policy input.
type Script struct {
	usernamePattern *regexp.Regexp
	passwordPattern *regexp.Regexp
	delegate        Validator
}

// NewScript compiles the username/password regex patterns and wraps
// delegate. An empty pattern matches anything.
func NewScript(usernameRegex, passwordRegex string, delegate Validator) (*Script, error) {
	userRe, err := compileOrAny(usernameRegex)
	if err != nil {
		return nil, fmt.Errorf("validator: compile username pattern: %w", err)
	}
	passRe, err := compileOrAny(passwordRegex)
	if err != nil {
		return nil, fmt.Errorf("validator: compile password pattern: %w", err)
	}
	return &Script{usernamePattern: userRe, passwordPattern: passRe, delegate: delegate}, nil
}

func compileOrAny(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return regexp.MustCompile(".*"), nil
	}
	return regexp.Compile(pattern)
}

// Validate implements Validator. Credentials that don't match the
// configured shape are rejected before the delegate ever sees them.
func (s *Script) Validate(ctx context.Context, tenant *model.Tenant, username, password string) (model.ValidatorResult, error) {
	if !s.usernamePattern.MatchString(username) || !s.passwordPattern.MatchString(password) {
		return model.ValidatorResult{Reason: "does not match tenant policy"}, nil
	}
	return s.delegate.Validate(ctx, tenant, username, password)
}
