package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

func TestScriptRejectsUsernameOutsidePattern(t *testing.T) {
	static := &Static{}
	require.NoError(t, static.AddUser("acme", "bob@external.test", "password", nil))

	s, err := NewScript(`^[a-z]+@acme\.test$`, "", static)
	require.NoError(t, err)

	res, err := s.Validate(context.Background(), &model.Tenant{Name: "acme"}, "bob@external.test", "password")
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestScriptDelegatesWhenPatternMatches(t *testing.T) {
	static := &Static{}
	require.NoError(t, static.AddUser("acme", "alice@acme.test", "password", nil))

	s, err := NewScript(`^[a-z]+@acme\.test$`, "", static)
	require.NoError(t, err)

	res, err := s.Validate(context.Background(), &model.Tenant{Name: "acme"}, "alice@acme.test", "password")
	require.NoError(t, err)
	assert.True(t, res.OK)
}
