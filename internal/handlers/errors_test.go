package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: password authentication failed for user kutable")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if strings.Contains(body["error"], "password") || body["error"] != "Internal server error" {
		t.Fatalf("internal error leaked: %q", body["error"])
	}
}

func TestErrorHandlerKeepsFiberErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !strings.HasPrefix(body["error"], "Cannot GET") {
		t.Fatalf("expected fiber message, got %q", body["error"])
	}
}
