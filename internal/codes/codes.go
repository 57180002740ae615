// Package codes implements the authorization code store from spec §4.6:
// an in-memory, short-TTL, at-most-once store. Consuming a code is
// linearizable — concurrent /token calls with the same code observe
// exactly one success (spec invariant 1).
//
// Grounded on the "lock-wrapped mutable field" design note (spec §9): the
// store is a typed map behind a narrow interface with atomic put/consume
// operations; no raw mutex-protected field is ever exported.
package codes

import (
	"fmt"
	"sync"
	"time"

	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/model"
)

// ErrInvalidGrant is returned for any lookup/consume failure the caller
// must translate into the OAuth `invalid_grant` wire error.
var ErrInvalidGrant = fmt.Errorf("codes: invalid_grant")

// Store is an in-memory authorization code store.
type Store struct {
	mu      sync.Mutex
	records map[string]*model.AuthorizationCode
}

// NewStore constructs an empty in-memory code store.
func NewStore() *Store {
	return &Store{records: make(map[string]*model.AuthorizationCode)}
}

// Put inserts a new pending authorization under code. Codes are opaque
// values minted by the caller (internal/crypto.RandomOpaque); the store
// never keys its map by the plaintext value, only by
// crypto.HashLookupKey(code), so the opaque code itself never enters the
// store's key space at rest.
func (s *Store) Put(code string, rec *model.AuthorizationCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[crypto.HashLookupKey(code)] = rec
}

// Consume atomically flips consumed and returns the record exactly once.
// Already-consumed or expired codes fail with ErrInvalidGrant. This is
// the linearization point for spec invariant 1: under any interleaving
// of concurrent callers, only the first Consume call for a given code
// returns successfully.
func (s *Store) Consume(code string) (*model.AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[crypto.HashLookupKey(code)]
	if !ok {
		return nil, ErrInvalidGrant
	}
	if rec.Consumed {
		return nil, ErrInvalidGrant
	}
	if rec.Expired(time.Now()) {
		rec.Consumed = true // expired codes are retired too, never retriable
		return nil, ErrInvalidGrant
	}

	rec.Consumed = true
	return rec, nil
}

// MarkFamily records which refresh family was spawned from a code, so a
// later repeat exchange of the same (already-consumed) code can revoke
// it. Safe to call after Consume has returned successfully.
func (s *Store) MarkFamily(code, familyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[crypto.HashLookupKey(code)]; ok {
		rec.RefreshFamilyID = familyID
	}
}

// FamilyOf returns the refresh family id spawned from code, if any.
func (s *Store) FamilyOf(code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[crypto.HashLookupKey(code)]
	if !ok {
		return "", false
	}
	return rec.RefreshFamilyID, rec.RefreshFamilyID != ""
}

// Sweep removes every expired record, consumed or not, to bound memory. It is
// not required for correctness (Consume already rejects expired codes)
// — only for the "swept lazily" bookkeeping named in spec §4.6.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, code)
			removed++
		}
	}
	return removed
}

// Len reports the number of records currently held, for tests and metrics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
