package permission

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	admins map[string]bool
	perms  map[string]Set
	calls  int
}

func (f *fakeStore) IsAdmin(_ context.Context, userID string) (bool, error) {
	return f.admins[userID], nil
}

func (f *fakeStore) UserPermissions(_ context.Context, userID string) (Set, error) {
	f.calls++
	return f.perms[userID], nil
}

type fakeCache struct {
	data map[string]Set
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]Set{}} }

func (f *fakeCache) Get(_ context.Context, userID string) (Set, bool, error) {
	s, ok := f.data[userID]
	return s, ok, nil
}

func (f *fakeCache) Set(_ context.Context, userID string, set Set) error {
	f.data[userID] = set
	return nil
}

func (f *fakeCache) Delete(_ context.Context, userID string) error {
	delete(f.data, userID)
	return nil
}

func TestResolver_AdminBypassesRoleUnion(t *testing.T) {
	store := &fakeStore{admins: map[string]bool{"u1": true}}
	resolver := NewResolver(store, newFakeCache(), zerolog.Nop())

	ok, err := resolver.HasPermission(context.Background(), "u1", RunScript("anything"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResolver_RoleUnionGrantsPermission(t *testing.T) {
	store := &fakeStore{perms: map[string]Set{"u1": NewSet(GetTableData("widgets"))}}
	resolver := NewResolver(store, newFakeCache(), zerolog.Nop())

	ok, err := resolver.HasPermission(context.Background(), "u1", GetTableData("widgets"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = resolver.HasPermission(context.Background(), "u1", GetTableData("gadgets"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolver_CachesComputedSet(t *testing.T) {
	store := &fakeStore{perms: map[string]Set{"u1": NewSet(RunQuery("q1"))}}
	resolver := NewResolver(store, newFakeCache(), zerolog.Nop())
	ctx := context.Background()

	_, _, err := resolver.Resolve(ctx, "u1")
	require.NoError(t, err)
	_, _, err = resolver.Resolve(ctx, "u1")
	require.NoError(t, err)

	require.Equal(t, 1, store.calls)
}

func TestResolver_InvalidateForcesRecompute(t *testing.T) {
	store := &fakeStore{perms: map[string]Set{"u1": NewSet(RunQuery("q1"))}}
	resolver := NewResolver(store, newFakeCache(), zerolog.Nop())
	ctx := context.Background()

	_, _, _ = resolver.Resolve(ctx, "u1")
	require.NoError(t, resolver.Invalidate(ctx, "u1"))
	_, _, _ = resolver.Resolve(ctx, "u1")

	require.Equal(t, 2, store.calls)
}
