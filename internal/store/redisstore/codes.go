// Package redisstore: CodeStore backs authorization codes with Redis so
// multiple server replicas share one view of code consumption — the
// linearizable consume-once guarantee (spec invariant 1) now rests on
// a Lua script evaluated atomically by Redis's single-threaded command
// execution instead of an in-process mutex. Unlike a plain GETDEL, the
// script leaves the record in place with `consumed=true` (refreshing
// its TTL) so MarkFamily/FamilyOf can still attach a refresh family id
// to an already-consumed code, matching internal/codes.Store's shape.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uitsmijter/uitsmijter/internal/crypto"
	"github.com/uitsmijter/uitsmijter/internal/model"
)

const codeKeyPrefix = "code:"

// ErrInvalidGrant mirrors internal/codes.ErrInvalidGrant so callers can
// treat both store implementations identically.
var ErrInvalidGrant = errors.New("invalid_grant")

// CodeStore is a Redis-backed authorization code store satisfying the
// same shape as internal/codes.Store.
type CodeStore struct {
	client *Client
}

// NewCodeStore wraps an already-constructed Client.
func NewCodeStore(client *Client) *CodeStore {
	return &CodeStore{client: client}
}

// codeKey derives the Redis key from crypto.HashLookupKey(code) rather
// than the plaintext code, so the opaque bearer value itself never enters
// Redis's key space at rest.
func codeKey(code string) string {
	return codeKeyPrefix + crypto.HashLookupKey(code)
}

// Put stores a freshly issued authorization code with a TTL matching its
// expiry, so Redis itself reclaims expired codes without a sweeper.
func (s *CodeStore) Put(ctx context.Context, code string, rec *model.AuthorizationCode) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.client.Set(ctx, codeKey(code), rec, ttl)
}

// consumeScript GETs the record, rejects if missing or already consumed,
// otherwise flips `consumed` to true and writes it back with its
// existing TTL preserved (KEEPTTL), returning the original JSON so the
// caller can decide expiry with its own clock.
var consumeScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if raw == false then
	return false
end
local rec = cjson.decode(raw)
if rec.Consumed then
	return false
end
rec.Consumed = true
redis.call("SET", KEYS[1], cjson.encode(rec), "KEEPTTL")
return raw
`)

// Consume atomically checks-and-flips the code's consumed flag via a
// server-side Lua script, so two concurrent redemptions of the same code
// can never both observe it unconsumed — the Redis analog of
// internal/codes.Store's mutex-guarded flip.
func (s *CodeStore) Consume(ctx context.Context, code string) (*model.AuthorizationCode, error) {
	if !s.client.IsEnabled() {
		return nil, fmt.Errorf("redis store not enabled")
	}

	val, err := consumeScript.Run(ctx, s.client.client, []string{codeKey(code)}).Result()
	if err == redis.Nil {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	raw, ok := val.(string)
	if !ok {
		return nil, ErrInvalidGrant
	}

	var rec model.AuthorizationCode
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode code record: %w", err)
	}
	if rec.Consumed || rec.Expired(time.Now()) {
		return nil, ErrInvalidGrant
	}
	rec.Consumed = true
	return &rec, nil
}

// MarkFamily records which refresh family was spawned from a code, so a
// later repeat exchange of the same (already-consumed) code can revoke
// it. Safe to call after Consume has returned successfully; relies on
// the record still being present with its TTL preserved.
func (s *CodeStore) MarkFamily(ctx context.Context, code, familyID string) error {
	var rec model.AuthorizationCode
	if err := s.client.Get(ctx, codeKey(code), &rec); err != nil {
		return err
	}
	rec.RefreshFamilyID = familyID
	ttl, err := s.client.TTL(ctx, codeKey(code))
	if err != nil || ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.Set(ctx, codeKey(code), &rec, ttl)
}

// FamilyOf returns the refresh family id spawned from code, if any.
func (s *CodeStore) FamilyOf(ctx context.Context, code string) (string, bool) {
	var rec model.AuthorizationCode
	if err := s.client.Get(ctx, codeKey(code), &rec); err != nil {
		return "", false
	}
	return rec.RefreshFamilyID, rec.RefreshFamilyID != ""
}

// Len reports the approximate number of live codes, for diagnostics only
// (Redis SCAN cost grows with key count; not used on any request path).
func (s *CodeStore) Len(ctx context.Context) (int, error) {
	if !s.client.IsEnabled() {
		return 0, nil
	}
	keys, err := s.client.client.Keys(ctx, codeKeyPrefix+"*").Result()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}
