package handlers

import (
	"errors"
	"strconv"

	"recycly-backend/middleware"
	"recycly-backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupNotificationRoutes(app *fiber.App, notificationService *services.NotificationService) {
	api := app.Group("/api/v1/notifications")

	// SSE clients pass the token in the query string.
	api.Get("/stream", middleware.SSEAuth(), notificationService.StreamSSE)

	secured := api.Group("/", middleware.AuthRequired())

	secured.Get("/", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		unreadOnly := c.Query("unread") == "true"
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		notifs, total, err := notificationService.ListForUser(userID, unreadOnly, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch notifications"})
		}
		return c.JSON(fiber.Map{"items": notifs, "total": total, "page": page})
	})

	secured.Patch("/:id/read", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		err := notificationService.MarkRead(userID, c.Params("id"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notification"})
		}
		return c.JSON(fiber.Map{"message": "Marked as read"})
	})

	secured.Post("/read-all", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		count, err := notificationService.MarkAllRead(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notifications"})
		}
		return c.JSON(fiber.Map{"updated": count})
	})
}
