package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"recycly-backend/middleware"
	"recycly-backend/models"
	"recycly-backend/services"
	"recycly-backend/utils"

	"github.com/gofiber/fiber/v2"
)

const leaderboardCacheKey = "leaderboard:points:top50"

func SetupProgressRoutes(app *fiber.App, pointsService *services.PointsService, achievementService *services.AchievementService) {
	api := app.Group("/api/v1", middleware.AuthRequired())

	api.Get("/points/history", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		entries, total, err := pointsService.History(userID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch history"})
		}
		return c.JSON(fiber.Map{"items": entries, "total": total, "page": page})
	})

	api.Get("/achievements", func(c *fiber.Ctx) error {
		catalog, err := achievementService.ListCatalog()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch achievements"})
		}
		return c.JSON(catalog)
	})

	api.Get("/achievements/mine", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		unlocked, err := achievementService.ListUserAchievements(userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch achievements"})
		}
		return c.JSON(unlocked)
	})

	// Top 50 by points, cached in Redis for a minute.
	api.Get("/leaderboard", func(c *fiber.Ctx) error {
		if rc := utils.GetRedis(); rc != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if cached, err := rc.Get(ctx, leaderboardCacheKey).Result(); err == nil {
				c.Set("Content-Type", "application/json")
				c.Set("X-Cache", "HIT")
				return c.SendString(cached)
			}
		}

		var users []models.User
		if err := pointsService.DB.
			Order("points DESC").
			Limit(50).
			Find(&users).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch leaderboard"})
		}

		board := make([]models.PublicUser, 0, len(users))
		for _, u := range users {
			board = append(board, u.Public())
		}

		if rc := utils.GetRedis(); rc != nil {
			if payload, err := json.Marshal(board); err == nil {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = rc.Set(ctx, leaderboardCacheKey, payload, time.Minute).Err()
			}
		}
		return c.JSON(board)
	})
}
