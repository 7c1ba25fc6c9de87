package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
)

func TestDiagnosticsEndpoints(t *testing.T) {
	app := fiber.New()
	RegisterDiagnosticsRoutes(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/-/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if health["status"] != "ok" {
		t.Fatalf("healthz body = %v", health)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/-/version", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	defer resp.Body.Close()
	var ver map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&ver); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if !strings.HasPrefix(ver["version"], "sxg-gateway ") {
		t.Fatalf("version body = %v", ver)
	}
}
