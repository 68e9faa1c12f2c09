package permission

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestApp(resolver *Resolver, perm Permission, userID string) *fiber.App {
	app := fiber.New()
	app.Get("/protected", func(c fiber.Ctx) error {
		if userID != "" {
			c.Locals("userID", userID)
		}
		return c.Next()
	}, RequirePermission(resolver, perm), func(c fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestRequirePermission_NoUser(t *testing.T) {
	resolver := NewResolver(&fakeStore{}, newFakeCache(), zerolog.Nop())
	app := newTestApp(resolver, UserAdmin, "")

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequirePermission_Denied(t *testing.T) {
	store := &fakeStore{perms: map[string]Set{"u1": NewSet(GetTableData("widgets"))}}
	resolver := NewResolver(store, newFakeCache(), zerolog.Nop())
	app := newTestApp(resolver, UserAdmin, "u1")

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequirePermission_Allowed(t *testing.T) {
	store := &fakeStore{admins: map[string]bool{"u1": true}}
	resolver := NewResolver(store, newFakeCache(), zerolog.Nop())
	app := newTestApp(resolver, UserAdmin, "u1")

	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
