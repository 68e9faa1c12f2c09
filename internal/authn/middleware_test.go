package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

func TestRequireAuthNoHeader(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Use(RequireAuth("secret", testIssuer))
	app.Get("/test", func(c fiber.Ctx) error { return c.SendStatus(200) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	secret := "test-secret"
	app.Use(RequireAuth(secret, testIssuer))
	app.Get("/test", func(c fiber.Ctx) error { return c.SendStatus(200) })

	tokenStr, err := NewAccessToken(uuid.New().String(), "alice", false, "", secret, -1*time.Second, testIssuer)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}
}

func TestRequireAuthValid(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	secret := "test-secret"
	userID := uuid.New().String()

	app.Use(RequireAuth(secret, testIssuer))
	app.Get("/test", func(c fiber.Ctx) error {
		id, ok := c.Locals("userID").(string)
		if !ok {
			return c.Status(500).SendString("userID not found in locals")
		}
		return c.SendString(id)
	})

	tokenStr, err := NewAccessToken(userID, "alice", false, "", secret, 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}
}
