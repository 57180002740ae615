package validator

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

func TestTOTPValidatesCodeThenDelegates(t *testing.T) {
	static := &Static{}
	require.NoError(t, static.AddUser("acme", "alice", "good-password", nil))

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "uitsmijter", AccountName: "alice"})
	require.NoError(t, err)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	v := NewTOTP(static, map[string]string{"alice": key.Secret()})

	res, err := v.Validate(context.Background(), &model.Tenant{Name: "acme"}, "alice", "good-password:"+code)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestTOTPRejectsMissingCode(t *testing.T) {
	static := &Static{}
	v := NewTOTP(static, map[string]string{})

	res, err := v.Validate(context.Background(), &model.Tenant{Name: "acme"}, "alice", "good-password")
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestTOTPRejectsWrongCode(t *testing.T) {
	static := &Static{}
	require.NoError(t, static.AddUser("acme", "alice", "good-password", nil))

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "uitsmijter", AccountName: "alice"})
	require.NoError(t, err)

	v := NewTOTP(static, map[string]string{"alice": key.Secret()})

	res, err := v.Validate(context.Background(), &model.Tenant{Name: "acme"}, "alice", "good-password:000000")
	require.NoError(t, err)
	assert.False(t, res.OK)
}
