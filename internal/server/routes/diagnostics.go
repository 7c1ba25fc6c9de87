package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/sxg-gateway/sxg-gateway/internal/version"
)

// RegisterDiagnosticsRoutes 暴露 /-/ 前缀下的探活与版本端点。
func RegisterDiagnosticsRoutes(app *fiber.App) {
	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/-/version", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"version": version.Full()})
	})
}
