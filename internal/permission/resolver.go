package permission

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Resolver computes a user's effective permission set, the way
// model/auth/permissions.rs's authorization check does: admin short-circuits
// to every permission, otherwise the set is the union of the user's roles'
// granted permissions.
type Resolver struct {
	store Store
	cache Cache
	log   zerolog.Logger
}

// NewResolver creates a new permission resolver.
func NewResolver(store Store, cache Cache, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, log: logger}
}

// Resolve returns the effective permission set for a user, using the cache
// when available. A nil Set combined with isAdmin=true means "every
// permission"; callers should check isAdmin before consulting the set.
func (r *Resolver) Resolve(ctx context.Context, userID string) (set Set, isAdmin bool, err error) {
	isAdmin, err = r.store.IsAdmin(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("check admin: %w", err)
	}
	if isAdmin {
		return nil, true, nil
	}

	if cached, ok, cacheErr := r.cache.Get(ctx, userID); cacheErr != nil {
		r.log.Warn().Err(cacheErr).Msg("permission cache get failed, falling through to compute")
	} else if ok {
		return cached, false, nil
	}

	set, err = r.store.UserPermissions(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("compute user permissions: %w", err)
	}

	if cacheErr := r.cache.Set(ctx, userID, set); cacheErr != nil {
		r.log.Warn().Err(cacheErr).Msg("permission cache set failed")
	}

	return set, false, nil
}

// HasPermission checks whether a user holds a specific permission. is_admin
// is a full bypass, matching model/auth/permissions.rs.
func (r *Resolver) HasPermission(ctx context.Context, userID string, perm Permission) (bool, error) {
	set, isAdmin, err := r.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	if isAdmin {
		return true, nil
	}
	return set.Has(perm), nil
}

// Invalidate drops the cached permission set for a user, so the next
// Resolve recomputes it from the store. The cache delete is not part of any
// database transaction.
func (r *Resolver) Invalidate(ctx context.Context, userID string) error {
	return r.cache.Delete(ctx, userID)
}
