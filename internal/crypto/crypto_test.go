package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomOpaqueLengthAndUniqueness(t *testing.T) {
	a, err := RandomOpaque(32)
	require.NoError(t, err)
	b, err := RandomOpaque(32)
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.Len(t, a, 43) // 32 bytes, unpadded base64url
	assert.NotEqual(t, a, b)
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("secret", "secret"))
	assert.False(t, ConstantTimeEqual("secret", "different"))
	assert.False(t, ConstantTimeEqual("secret", "secre"))
}

func TestHashSecretRoundTrip(t *testing.T) {
	hash, err := HashSecret("R1-opaque-refresh-token")
	require.NoError(t, err)

	assert.True(t, VerifySecret("R1-opaque-refresh-token", hash))
	assert.False(t, VerifySecret("wrong-token", hash))
}

func TestHashLookupKeyDeterministic(t *testing.T) {
	assert.Equal(t, HashLookupKey("AAA"), HashLookupKey("AAA"))
	assert.NotEqual(t, HashLookupKey("AAA"), HashLookupKey("BBB"))
}

func TestVerifyPKCE(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := PKCEChallengeS256(verifier)

	assert.True(t, VerifyPKCE("S256", verifier, challenge))
	assert.False(t, VerifyPKCE("S256", "wrong-verifier", challenge))
	assert.True(t, VerifyPKCE("PLAIN", "plain-value", "plain-value"))
	assert.False(t, VerifyPKCE("unknown", verifier, challenge))
}

func TestHMACSHA256VerifyRoundTrip(t *testing.T) {
	key := []byte("server-secret")
	msg := []byte("cookie-payload")

	mac := HMACSHA256(key, msg)
	assert.True(t, VerifyHMACSHA256(key, msg, mac))
	assert.False(t, VerifyHMACSHA256(key, []byte("tampered"), mac))
}
