package handlers

import (
	"errors"
	"strconv"

	"recycly-backend/middleware"
	"recycly-backend/models"
	"recycly-backend/services"
	"recycly-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupAdminRoutes(app *fiber.App, disposalService *services.DisposalService, pointsService *services.PointsService) {
	admin := app.Group("/api/v1/admin",
		middleware.AuthRequired(),
		middleware.RequireRoles(models.RoleAdmin))

	// --- User management ---

	admin.Get("/users", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		if page < 1 {
			page = 1
		}
		if size < 1 || size > 100 {
			size = 20
		}

		query := disposalService.DB.Model(&models.User{})
		if role := c.Query("role"); role != "" {
			query = query.Where("role = ?", role)
		}
		if q := c.Query("q"); q != "" {
			query = query.Where("username LIKE ? OR email LIKE ?", "%"+q+"%", "%"+q+"%")
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		var users []models.User
		if err := query.Order("created_at DESC").
			Limit(size).Offset((page - 1) * size).
			Find(&users).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.JSON(fiber.Map{"items": users, "total": total, "page": page})
	})

	// Role changes. Only SUPER_ADMIN may mint or strip ADMIN.
	admin.Patch("/users/:id/role", func(c *fiber.Ctx) error {
		var req struct {
			Role models.Role `json:"role"`
		}
		if err := c.BodyParser(&req); err != nil || !models.ValidRole(req.Role) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid role"})
		}

		actorRole := c.Locals("role").(models.Role)
		if actorRole != models.RoleSuperAdmin {
			if req.Role == models.RoleAdmin || req.Role == models.RoleSuperAdmin {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only a super admin may grant admin roles"})
			}
			var target models.User
			if err := disposalService.DB.First(&target, "id = ?", c.Params("id")).Error; err == nil {
				if target.Role == models.RoleAdmin || target.Role == models.RoleSuperAdmin {
					return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only a super admin may modify admin accounts"})
				}
			}
		}

		res := disposalService.DB.Model(&models.User{}).
			Where("id = ?", c.Params("id")).
			Update("role", req.Role)
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update role"})
		}
		if res.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}

		utils.Sugar.Infow("user role changed",
			"actor_id", c.Locals("user_id"), "target_id", c.Params("id"), "new_role", req.Role)
		return c.JSON(fiber.Map{"message": "Role updated"})
	})

	admin.Get("/stats", func(c *fiber.Ctx) error {
		db := disposalService.DB

		var userCount, managerCount int64
		db.Model(&models.User{}).Count(&userCount)
		db.Model(&models.User{}).Where("role = ?", models.RoleWasteManager).Count(&managerCount)

		type statusCount struct {
			Status string `json:"status"`
			Count  int64  `json:"count"`
		}
		var disposalsByStatus []statusCount
		db.Model(&models.WasteDisposal{}).
			Select("status, COUNT(*) AS count").
			Group("status").
			Scan(&disposalsByStatus)

		type categoryWeight struct {
			Name     string  `json:"name"`
			TotalKg  float64 `json:"total_kg"`
			Disposed int64   `json:"disposals"`
		}
		var byCategory []categoryWeight
		db.Model(&models.WasteDisposal{}).
			Select("waste_categories.name, COALESCE(SUM(waste_disposals.quantity), 0) AS total_kg, COUNT(*) AS disposed").
			Joins("JOIN waste_categories ON waste_categories.id = waste_disposals.category_id").
			Where("waste_disposals.status = ?", models.DisposalStatusCompleted).
			Group("waste_categories.name").
			Order("total_kg DESC").
			Scan(&byCategory)

		var pointsDistributed, pointsSpent int64
		db.Model(&models.PointTransaction{}).
			Where("amount > 0").
			Select("COALESCE(SUM(amount), 0)").Scan(&pointsDistributed)
		db.Model(&models.PointTransaction{}).
			Where("type = ?", models.TransactionSpent).
			Select("COALESCE(SUM(-amount), 0)").Scan(&pointsSpent)

		var redemptionCount int64
		db.Model(&models.UserReward{}).Count(&redemptionCount)

		return c.JSON(fiber.Map{
			"users":               userCount,
			"waste_managers":      managerCount,
			"disposals_by_status": disposalsByStatus,
			"completed_by_category": byCategory,
			"points_distributed":  pointsDistributed,
			"points_spent":        pointsSpent,
			"redemptions":         redemptionCount,
		})
	})

	// --- Category management ---

	admin.Post("/waste-categories", func(c *fiber.Ctx) error {
		var req struct {
			Name          string  `json:"name"`
			Description   string  `json:"description"`
			PointsPerUnit float64 `json:"points_per_unit"`
			IconURL       string  `json:"icon_url"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Name == "" || req.PointsPerUnit <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name and a positive points_per_unit are required"})
		}

		category := models.WasteCategory{
			Name:          req.Name,
			Description:   utils.SanitizeText(req.Description),
			PointsPerUnit: req.PointsPerUnit,
			IconURL:       req.IconURL,
			Active:        true,
		}
		if err := disposalService.DB.Create(&category).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create category"})
		}
		return c.Status(fiber.StatusCreated).JSON(category)
	})

	admin.Patch("/waste-categories/:id", func(c *fiber.Ctx) error {
		var req struct {
			Name          *string  `json:"name"`
			Description   *string  `json:"description"`
			PointsPerUnit *float64 `json:"points_per_unit"`
			IconURL       *string  `json:"icon_url"`
			Active        *bool    `json:"active"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = utils.SanitizeText(*req.Description)
		}
		if req.PointsPerUnit != nil {
			if *req.PointsPerUnit <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points_per_unit must be positive"})
			}
			updates["points_per_unit"] = *req.PointsPerUnit
		}
		if req.IconURL != nil {
			updates["icon_url"] = *req.IconURL
		}
		if req.Active != nil {
			updates["active"] = *req.Active
		}
		if len(updates) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nothing to update"})
		}

		res := disposalService.DB.Model(&models.WasteCategory{}).
			Where("id = ?", c.Params("id")).
			Updates(updates)
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update category"})
		}
		if res.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Category not found"})
		}
		return c.JSON(fiber.Map{"message": "Category updated"})
	})

	// --- Operations ---

	// Re-trigger distribution for a completed disposal whose first attempt
	// failed. The one-shot guard makes this safe to call repeatedly.
	admin.Post("/disposals/:id/distribute", func(c *fiber.Ctx) error {
		err := disposalService.DistributeWasteDisposalRewards(c.Params("id"))
		switch {
		case errors.Is(err, services.ErrDisposalNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Disposal not found"})
		case errors.Is(err, services.ErrDisposalNotCompleted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Disposal is not completed"})
		case errors.Is(err, services.ErrManagerNotAssigned):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "No manager assigned"})
		case errors.Is(err, services.ErrRewardsAlreadyDistributed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Rewards were already distributed"})
		case err != nil:
			utils.Sugar.Errorw("manual distribution failed", "disposal_id", c.Params("id"), "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Distribution failed"})
		}
		return c.JSON(fiber.Map{"message": "Rewards distributed"})
	})

	admin.Post("/audit/ledger", func(c *fiber.Ctx) error {
		drifted, err := pointsService.AuditLedgerDrift()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Audit failed"})
		}
		return c.JSON(fiber.Map{"drifted_users": drifted})
	})

	admin.Get("/users/:id/ledger", func(c *fiber.Ctx) error {
		var user models.User
		err := disposalService.DB.First(&user, "id = ?", c.Params("id")).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		entries, total, err := pointsService.History(user.ID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}
		return c.JSON(fiber.Map{"user": user, "items": entries, "total": total, "page": page})
	})
}
