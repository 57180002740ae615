package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

func TestStaticValidateSuccess(t *testing.T) {
	s := &Static{}
	require.NoError(t, s.AddUser("acme", "alice", "good-password", map[string]any{"email": "alice@acme.test"}))

	tenant := &model.Tenant{Name: "acme"}
	res, err := s.Validate(context.Background(), tenant, "alice", "good-password")
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "alice", res.Subject)
}

func TestStaticValidateWrongPassword(t *testing.T) {
	s := &Static{}
	require.NoError(t, s.AddUser("acme", "alice", "good-password", nil))

	tenant := &model.Tenant{Name: "acme"}
	res, err := s.Validate(context.Background(), tenant, "alice", "wrong-password")
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestStaticValidateUnknownTenant(t *testing.T) {
	s := &Static{}
	res, err := s.Validate(context.Background(), nil, "alice", "whatever")
	require.NoError(t, err)
	assert.False(t, res.OK)
}
