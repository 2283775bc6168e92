package middleware

import (
	"recycly-backend/models"

	"github.com/gofiber/fiber/v2"
)

// RequireRoles allows the request through only when the authenticated role is
// in the allow list. SUPER_ADMIN passes every check.
func RequireRoles(allowed ...models.Role) fiber.Handler {
	allowSet := make(map[models.Role]bool, len(allowed))
	for _, r := range allowed {
		allowSet[r] = true
	}

	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(models.Role)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authentication context",
			})
		}
		if role == models.RoleSuperAdmin || allowSet[role] {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Insufficient permissions",
		})
	}
}
