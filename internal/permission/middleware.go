package permission

import (
	"github.com/gofiber/fiber/v3"

	"github.com/loomctl/loom/internal/httputil"
)

// RequirePermission returns Fiber middleware that checks whether the
// authenticated user (set by authn.RequireAuth in c.Locals("userID")) holds
// the given permission. It guards the thin REST surface (SPEC_FULL.md §6);
// the WebSocket session checks permissions per-Action through the decorator
// pipeline instead.
func RequirePermission(resolver *Resolver, perm Permission) fiber.Handler {
	return func(c fiber.Ctx) error {
		userID, ok := c.Locals("userID").(string)
		if !ok || userID == "" {
			return httputil.Fail(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		}

		allowed, err := resolver.HasPermission(c.Context(), userID, perm)
		if err != nil {
			return httputil.Fail(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check permissions")
		}
		if !allowed {
			return httputil.Fail(c, fiber.StatusForbidden, "MISSING_PERMISSIONS", "You do not have the required permissions")
		}

		return c.Next()
	}
}
