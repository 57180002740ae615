// Package refresh implements the rotation-aware refresh token store from
// spec §4.7: presenting R_n returns R_{n+1} and marks R_n revoked; replay
// of an already-revoked token revokes the entire family (spec invariant
// 2, scenario S5).
//
// Grounded on the same "lock-wrapped mutable field" design note as
// internal/codes, and on the teacher's method-per-operation store shape
// (internal/cache/cache.go).
package refresh

import (
	"fmt"
	"sync"
	"time"

	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/model"
)

// ErrInvalidGrant is returned for any lookup/rotate failure the caller
// must translate into the OAuth `invalid_grant` wire error.
var ErrInvalidGrant = fmt.Errorf("refresh: invalid_grant")

// Store is an in-memory refresh token store. It never keys its map by a
// plaintext token id, only by crypto.HashLookupKey(id), so the opaque
// bearer token itself never enters the store's key space at rest.
type Store struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
}

// NewStore constructs an empty in-memory refresh token store.
func NewStore() *Store {
	return &Store{tokens: make(map[string]*model.RefreshToken)}
}

// PutInitial stores the first token of a new family (created at initial
// /token exchange).
func (s *Store) PutInitial(id string, rec *model.RefreshToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[crypto.HashLookupKey(id)] = rec
}

// Rotate presents tokenID for exchange. On success it marks tokenID
// revoked, links the new token as its child, and stores the new token.
// On replay of an already-revoked token, the entire family is revoked
// and the call fails with ErrInvalidGrant — this is the linearization
// point for spec invariant 2.
func (s *Store) Rotate(tokenID string, newID string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[crypto.HashLookupKey(tokenID)]
	if !ok {
		return nil, ErrInvalidGrant
	}
	if rec.Revoked {
		s.revokeFamilyLocked(rec.FamilyID)
		return nil, ErrInvalidGrant
	}
	if rec.Expired(time.Now()) {
		return nil, ErrInvalidGrant
	}

	rec.Revoked = true

	next := &model.RefreshToken{
		ID:         newID,
		FamilyID:   rec.FamilyID,
		ClientID:   rec.ClientID,
		TenantName: rec.TenantName,
		Subject:    rec.Subject,
		Scope:      rec.Scope,
		ParentID:   tokenID,
		ExpiresAt:  rec.ExpiresAt,
		Revoked:    false,
	}
	s.tokens[crypto.HashLookupKey(newID)] = next
	return next, nil
}

// RevokeFamily revokes every token in familyID. Called directly when an
// authorization code is exchanged a second time (spec §4.6: "revoke any
// refresh family already spawned from this code").
func (s *Store) RevokeFamily(familyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeFamilyLocked(familyID)
}

func (s *Store) revokeFamilyLocked(familyID string) {
	for _, rec := range s.tokens {
		if rec.FamilyID == familyID {
			rec.Revoked = true
		}
	}
}

// Get returns the current record for tokenID, for inspection/tests.
func (s *Store) Get(tokenID string) (*model.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[crypto.HashLookupKey(tokenID)]
	return rec, ok
}

// Sweep removes expired, revoked records to bound memory (spec §4.7:
// "expired tokens are swept lazily"). Not required for correctness —
// Rotate already rejects expired/revoked tokens.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.tokens {
		if rec.Revoked && rec.Expired(now) {
			delete(s.tokens, id)
			removed++
		}
	}
	return removed
}
