package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowRespectsBurst(t *testing.T) {
	l := New(1, 2)

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"), "third immediate request should exceed burst of 2")
}

func TestAllowIsPerKey(t *testing.T) {
	l := New(1, 1)

	assert.True(t, l.Allow("client-a"))
	assert.True(t, l.Allow("client-b"), "a different key must have its own independent bucket")
}
