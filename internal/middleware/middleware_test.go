package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/digitalcloudassets/kutable-sub001/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func newAuthApp(secret string) *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthRequired(secret), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	return app
}

func TestAuthRequiredRejectsMissingHeader(t *testing.T) {
	app := newAuthApp("secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthRequiredAcceptsBearerAndQueryToken(t *testing.T) {
	app := newAuthApp("secret")
	token, err := utils.GenerateToken("user-1", "client", "secret")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for header token, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for query token, got %d", resp.StatusCode)
	}
}

func TestAuthRequiredRejectsMalformedHeader(t *testing.T) {
	app := newAuthApp("secret")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUserRateLimiterIsPerUser(t *testing.T) {
	limiter := NewUserRateLimiter(1, 1, zap.NewNop())
	app := fiber.New()
	app.Post("/send", func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User"))
		return c.Next()
	}, limiter.Handler(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/send", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		return resp.StatusCode
	}

	if code := send("a"); code != fiber.StatusCreated {
		t.Fatalf("expected first request allowed, got %d", code)
	}
	if code := send("a"); code != fiber.StatusTooManyRequests {
		t.Fatalf("expected second request limited, got %d", code)
	}
	if code := send("b"); code != fiber.StatusCreated {
		t.Fatalf("expected other user unaffected, got %d", code)
	}
}
