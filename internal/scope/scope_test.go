package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIntersection(t *testing.T) {
	final, err := Resolve(
		[]string{"openid", "email", "admin"},
		[]string{"openid", "email"},
		[]string{"openid", "email", "profile"},
	)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"openid", "email"}, final)
}

func TestResolveEmptyIntersectionFails(t *testing.T) {
	_, err := Resolve([]string{"admin"}, []string{"openid"}, []string{"openid"})
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestProjectClaimsFiltersByScopeAndAllowList(t *testing.T) {
	claims := map[string]any{
		"email":          "alice@example.test",
		"email_verified": true,
		"ssn":            "123-45-6789",
	}

	out := ProjectClaims(claims, []string{"email", "email_verified"}, []string{"email"})
	assert.Equal(t, "alice@example.test", out["email"])
	assert.Equal(t, true, out["email_verified"])
	_, hasSSN := out["ssn"]
	assert.False(t, hasSSN, "claim not in allow_list must never be emitted")
}
