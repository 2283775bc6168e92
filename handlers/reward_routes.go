package handlers

import (
	"fmt"
	"time"

	"recycly-backend/middleware"
	"recycly-backend/models"
	"recycly-backend/services"
	"recycly-backend/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, rewardService *services.RewardService) {
	api := app.Group("/api/v1", middleware.AuthRequired())

	api.Get("/rewards", rewardService.GetCatalog)
	api.Post("/rewards/:id/redeem", rewardService.RedeemReward)
	api.Get("/redemptions/mine", rewardService.MyRedemptions)

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))

	admin.Get("/rewards", rewardService.GetAllRewards)
	admin.Post("/rewards", rewardService.CreateReward)
	admin.Patch("/rewards/:id", rewardService.UpdateReward)
	admin.Delete("/rewards/:id", rewardService.DeleteReward)

	admin.Post("/rewards/:id/image", func(c *fiber.Ctx) error {
		file, err := c.FormFile("image")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Image file is required"})
		}
		key := fmt.Sprintf("rewards/%d-%s", time.Now().UnixNano(), file.Filename)
		url, err := utils.UploadFile(file, key)
		if err != nil {
			utils.Sugar.Errorw("reward image upload failed", "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload image"})
		}

		res := rewardService.DB.Model(&models.Reward{}).
			Where("id = ?", c.Params("id")).
			Update("image_url", url)
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update reward"})
		}
		if res.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.JSON(fiber.Map{"image_url": url})
	})

	admin.Get("/redemptions", rewardService.ListPendingRedemptions)
	admin.Patch("/redemptions/:id", rewardService.ResolveRedemptionHandler)
}
