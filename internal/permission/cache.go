package permission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheTTL is the default time-to-live for a cached permission set.
const CacheTTL = 300 * time.Second

// CachePrefix is the key prefix for cached permission sets in Valkey.
const CachePrefix = "perms"

func cacheKey(userID string) string { return CachePrefix + ":" + userID }

// wireEntry mirrors Permission for JSON transport; Permission's zero-valued
// fields marshal fine directly, but an explicit type keeps the wire shape
// stable if Permission ever grows unexported fields.
type wireEntry struct {
	Kind       Kind       `json:"kind"`
	RoleName   string     `json:"role_name,omitempty"`
	TypeName   EntityType `json:"type_name,omitempty"`
	EntityName string     `json:"entity_name,omitempty"`
	Username   string     `json:"username,omitempty"`
}

// Cache provides get/set/delete operations for a user's computed permission
// set.
type Cache interface {
	Get(ctx context.Context, userID string) (Set, bool, error)
	Set(ctx context.Context, userID string, set Set) error
	Delete(ctx context.Context, userID string) error
}

// ValkeyCache implements Cache using Valkey/Redis.
type ValkeyCache struct {
	client *redis.Client
}

// NewValkeyCache creates a new Valkey-backed permission cache.
func NewValkeyCache(client *redis.Client) *ValkeyCache {
	return &ValkeyCache{client: client}
}

func (c *ValkeyCache) Get(ctx context.Context, userID string) (Set, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var entries []wireEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached permissions: %w", err)
	}

	set := make(Set, len(entries))
	for _, e := range entries {
		set[Permission{Kind: e.Kind, RoleName: e.RoleName, TypeName: e.TypeName, EntityName: e.EntityName, Username: e.Username}] = struct{}{}
	}
	return set, true, nil
}

func (c *ValkeyCache) Set(ctx context.Context, userID string, set Set) error {
	entries := make([]wireEntry, 0, len(set))
	for p := range set {
		entries = append(entries, wireEntry{Kind: p.Kind, RoleName: p.RoleName, TypeName: p.TypeName, EntityName: p.EntityName, Username: p.Username})
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(userID), raw, CacheTTL).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *ValkeyCache) Delete(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
