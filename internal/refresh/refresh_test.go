package refresh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uitsmijter/uitsmijter/internal/model"
)

func seed(s *Store, id, family string) {
	s.PutInitial(id, &model.RefreshToken{
		ID:         id,
		FamilyID:   family,
		ClientID:   "app1",
		Subject:    "alice",
		ExpiresAt:  time.Now().Add(time.Hour),
	})
}

func TestRotateChain(t *testing.T) {
	s := NewStore()
	seed(s, "R1", "F1")

	r2, err := s.Rotate("R1", "R2")
	require.NoError(t, err)
	assert.Equal(t, "R1", r2.ParentID)

	r1, ok := s.Get("R1")
	require.True(t, ok)
	assert.True(t, r1.Revoked)
}

func TestReplayRevokesWholeFamily(t *testing.T) {
	s := NewStore()
	seed(s, "R1", "F1")

	_, err := s.Rotate("R1", "R2")
	require.NoError(t, err)

	// Replay of R1 (already revoked).
	_, err = s.Rotate("R1", "R3")
	assert.ErrorIs(t, err, ErrInvalidGrant)

	// R2, descended from the same family, must now also fail.
	_, err = s.Rotate("R2", "R4")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRotateUnknownTokenFails(t *testing.T) {
	s := NewStore()
	_, err := s.Rotate("missing", "R2")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRotateExpiredFails(t *testing.T) {
	s := NewStore()
	s.PutInitial("R1", &model.RefreshToken{ID: "R1", FamilyID: "F1", ExpiresAt: time.Now().Add(-time.Minute)})

	_, err := s.Rotate("R1", "R2")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRevokeFamilyDirectly(t *testing.T) {
	s := NewStore()
	seed(s, "R1", "F1")

	s.RevokeFamily("F1")

	_, err := s.Rotate("R1", "R2")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}
