// TOTP second-factor validator.
//
// Grounded on github.com/pquerna/otp, present in the teacher's go.mod but
// not previously exercised in an examined teacher file — wired here for
// the first time as a decorator over any other Validator, composing a
// password check with a time-based one-time code.
package validator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

// TOTP wraps a delegate Validator and additionally requires a valid
// time-based one-time code, expected appended to the password as
// "<password>:<6-digit-code>" — the simplest form-compatible encoding
// given this adapter's fixed (username, password) signature.
type TOTP struct {
	delegate Validator
	secrets  map[string]string // username -> base32 TOTP secret
}

// NewTOTP constructs a TOTP decorator around delegate.
func NewTOTP(delegate Validator, secrets map[string]string) *TOTP {
	return &TOTP{delegate: delegate, secrets: secrets}
}

// Validate implements Validator.
func (t *TOTP) Validate(ctx context.Context, tenant *model.Tenant, username, password string) (model.ValidatorResult, error) {
	pw, code, ok := splitTOTPCode(password)
	if !ok {
		return model.ValidatorResult{Reason: "missing totp code"}, nil
	}

	secret, known := t.secrets[username]
	if !known {
		return model.ValidatorResult{Reason: "totp not configured"}, nil
	}
	valid, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: 6,
	})
	if err != nil {
		return model.ValidatorResult{}, fmt.Errorf("validator: totp validate: %w", err)
	}
	if !valid {
		return model.ValidatorResult{Reason: "invalid totp code"}, nil
	}

	return t.delegate.Validate(ctx, tenant, username, pw)
}

func splitTOTPCode(password string) (pw, code string, ok bool) {
	idx := strings.LastIndex(password, ":")
	if idx < 0 {
		return "", "", false
	}
	return password[:idx], password[idx+1:], true
}
