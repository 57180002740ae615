// Package redisstore: RefreshStore backs refresh token rotation with
// Redis, so the replay-detection invariant (spec invariant 2, scenario
// S5) holds across server replicas. A family index set (family:<id> ->
// token ids) lets RevokeFamily reach every descendant token without a
// full key scan, mirroring internal/refresh.Store's in-memory map scan
// but bounded to one family's members.
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

const (
	refreshKeyPrefix = "refresh:"
	familyKeyPrefix  = "family:"
)

// ErrInvalidGrant mirrors internal/refresh.ErrInvalidGrant.
var ErrInvalidGrant = errors.New("invalid_grant")

// RefreshStore is a Redis-backed refresh token store satisfying the same
// shape as internal/refresh.Store.
type RefreshStore struct {
	client *Client
}

// NewRefreshStore wraps an already-constructed Client.
func NewRefreshStore(client *Client) *RefreshStore {
	return &RefreshStore{client: client}
}

// refreshKey derives the Redis key from crypto.HashLookupKey(id) rather
// than the plaintext token id, so the bearer value never enters Redis's
// key space (or a family set, see below) at rest.
func refreshKey(id string) string { return refreshKeyFromHash(crypto.HashLookupKey(id)) }

func refreshKeyFromHash(hash string) string { return refreshKeyPrefix + hash }

func familyKey(id string) string { return familyKeyPrefix + id }

// PutInitial stores the first token of a new family.
func (s *RefreshStore) PutInitial(ctx context.Context, id string, rec *model.RefreshToken) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, refreshKey(id), rec, ttl); err != nil {
		return err
	}
	return s.client.client.SAdd(ctx, familyKey(rec.FamilyID), crypto.HashLookupKey(id)).Err()
}

// rotateScript atomically checks tokenID, marks it revoked on success,
// writes the new token record, and signals the caller whether a replay
// was detected (so the Go side can drive family revocation, which needs
// to walk the family's member set rather than being expressed in Lua).
var rotateScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if raw == false then
	return cjson.encode({status="missing"})
end
local rec = cjson.decode(raw)
if rec.Revoked then
	return cjson.encode({status="replay", family_id=rec.FamilyID})
end
rec.Revoked = true
redis.call("SET", KEYS[1], cjson.encode(rec), "KEEPTTL")
return cjson.encode({status="ok", record=rec})
`)

type rotateResult struct {
	Status   string             `json:"status"`
	FamilyID string             `json:"family_id"`
	Record   *model.RefreshToken `json:"record"`
}

// Rotate presents tokenID for exchange, as internal/refresh.Store.Rotate
// does: success revokes tokenID and returns its freshly minted child;
// replay of an already-revoked token revokes the whole family.
func (s *RefreshStore) Rotate(ctx context.Context, tokenID, newID string) (*model.RefreshToken, error) {
	if !s.client.IsEnabled() {
		return nil, fmt.Errorf("redis store not enabled")
	}

	raw, err := rotateScript.Run(ctx, s.client.client, []string{refreshKey(tokenID)}).Result()
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	str, _ := raw.(string)

	var res rotateResult
	if err := json.Unmarshal([]byte(str), &res); err != nil {
		return nil, fmt.Errorf("decode rotate result: %w", err)
	}

	switch res.Status {
	case "missing":
		return nil, ErrInvalidGrant
	case "replay":
		if err := s.RevokeFamily(ctx, res.FamilyID); err != nil {
			return nil, err
		}
		return nil, ErrInvalidGrant
	}

	rec := res.Record
	if rec.Expired(time.Now()) {
		return nil, ErrInvalidGrant
	}

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
	ttl := time.Until(next.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := s.client.Set(ctx, refreshKey(newID), next, ttl); err != nil {
		return nil, err
	}
	if err := s.client.client.SAdd(ctx, familyKey(next.FamilyID), crypto.HashLookupKey(newID)).Err(); err != nil {
		return nil, err
	}
	return next, nil
}

// RevokeFamily revokes every token recorded as a member of familyID.
// Members are stored as crypto.HashLookupKey(id) (see PutInitial/Rotate),
// so this never re-derives a plaintext id from the family set.
func (s *RefreshStore) RevokeFamily(ctx context.Context, familyID string) error {
	members, err := s.client.client.SMembers(ctx, familyKey(familyID)).Result()
	if err != nil {
		return fmt.Errorf("list family members: %w", err)
	}
	for _, hashedID := range members {
		key := refreshKeyFromHash(hashedID)
		var rec model.RefreshToken
		if err := s.client.Get(ctx, key, &rec); err != nil {
			continue // already expired/evicted by Redis TTL
		}
		rec.Revoked = true
		ttl, err := s.client.TTL(ctx, key)
		if err != nil || ttl <= 0 {
			ttl = time.Minute
		}
		if err := s.client.Set(ctx, key, &rec, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the current record for tokenID, for inspection/tests.
func (s *RefreshStore) Get(ctx context.Context, tokenID string) (*model.RefreshToken, bool) {
	var rec model.RefreshToken
	if err := s.client.Get(ctx, refreshKey(tokenID), &rec); err != nil {
		return nil, false
	}
	return &rec, true
}
