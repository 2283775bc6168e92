package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"recycly-backend/middleware"
	"recycly-backend/models"
	"recycly-backend/services"
	"recycly-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func SetupDisposalRoutes(app *fiber.App, disposalService *services.DisposalService) {
	api := app.Group("/api/v1", middleware.AuthRequired())

	// Anyone signed in can browse the active category rate table.
	api.Get("/waste-categories", func(c *fiber.Ctx) error {
		var categories []models.WasteCategory
		if err := disposalService.DB.
			Where("active = ?", true).
			Order("name ASC").
			Find(&categories).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch categories"})
		}
		return c.JSON(categories)
	})

	// Submit a disposal. Accepts multipart (with an optional photo) or JSON.
	api.Post("/disposals", func(c *fiber.Ctx) error {
		var in services.SubmitDisposalInput

		if form, err := c.MultipartForm(); err == nil && form != nil {
			in.CategoryID = c.FormValue("category_id")
			in.Notes = c.FormValue("notes")
			in.Quantity, _ = strconv.ParseFloat(c.FormValue("quantity"), 64)

			if file, err := c.FormFile("photo"); err == nil {
				key := fmt.Sprintf("disposals/%d-%s", time.Now().UnixNano(), file.Filename)
				url, err := utils.UploadFile(file, key)
				if err != nil {
					utils.Sugar.Errorw("photo upload failed", "err", err)
					return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload photo"})
				}
				in.PhotoURL = url
			}
		} else {
			var req struct {
				CategoryID string  `json:"category_id"`
				Quantity   float64 `json:"quantity"`
				Notes      string  `json:"notes"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
			}
			in = services.SubmitDisposalInput{
				CategoryID: req.CategoryID,
				Quantity:   req.Quantity,
				Notes:      req.Notes,
			}
		}

		userID := c.Locals("user_id").(string)
		disposal, err := disposalService.SubmitDisposal(userID, in)
		switch {
		case errors.Is(err, services.ErrInvalidQuantity):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Quantity must be positive"})
		case errors.Is(err, services.ErrCategoryNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Waste category not found"})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to submit disposal"})
		}
		return c.Status(fiber.StatusCreated).JSON(disposal)
	})

	api.Get("/disposals/mine", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		disposals, total, err := disposalService.ListUserDisposals(userID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch disposals"})
		}
		return c.JSON(fiber.Map{"items": disposals, "total": total, "page": page})
	})

	api.Get("/disposals/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid disposal ID"})
		}
		disposal, err := disposalService.GetDisposal(id)
		if errors.Is(err, services.ErrDisposalNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Disposal not found"})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		// Owners see their own, managers and admins see everything.
		role := c.Locals("role").(models.Role)
		userID := c.Locals("user_id").(string)
		if role == models.RoleUser && disposal.UserID != userID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
		}
		return c.JSON(disposal)
	})

	// Manager queue and processing.
	manager := api.Group("/manager", middleware.RequireRoles(models.RoleWasteManager, models.RoleAdmin))

	manager.Get("/disposals", func(c *fiber.Ctx) error {
		status := models.DisposalStatus(c.Query("status", string(models.DisposalStatusPending)))
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		disposals, total, err := disposalService.ListDisposalsByStatus(status, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch disposals"})
		}
		return c.JSON(fiber.Map{"items": disposals, "total": total, "page": page})
	})

	manager.Get("/disposals/assigned", func(c *fiber.Ctx) error {
		managerID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		disposals, total, err := disposalService.ListManagerDisposals(managerID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch disposals"})
		}
		return c.JSON(fiber.Map{"items": disposals, "total": total, "page": page})
	})

	manager.Patch("/disposals/:id/status", func(c *fiber.Ctx) error {
		var req struct {
			Status models.DisposalStatus `json:"status"`
			Reason string                `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		managerID := c.Locals("user_id").(string)
		disposal, err := disposalService.TransitionStatus(c.Params("id"), managerID, services.TransitionInput{
			To:     req.Status,
			Reason: req.Reason,
		})
		switch {
		case errors.Is(err, services.ErrDisposalNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Disposal not found"})
		case errors.Is(err, services.ErrInvalidTransition):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Illegal status transition"})
		case errors.Is(err, services.ErrNotAssignedManager):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Disposal is assigned to another manager"})
		case errors.Is(err, services.ErrRewardsAlreadyDistributed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Rewards were already distributed"})
		case err != nil:
			utils.Sugar.Errorw("status transition failed", "disposal_id", c.Params("id"), "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update disposal"})
		}
		return c.JSON(disposal)
	})

	// Reward previews for the processing UI.
	manager.Get("/disposals/:id/preview", func(c *fiber.Ctx) error {
		disposal, err := disposalService.GetDisposal(c.Params("id"))
		if errors.Is(err, services.ErrDisposalNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Disposal not found"})
		}
		if err != nil || disposal.Category == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
		}

		userCalc, err := disposalService.CalculateUserRewards(disposal.UserID, disposal.Category.PointsPerUnit, disposal.Quantity)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to calculate rewards"})
		}

		resp := fiber.Map{"user": userCalc}
		if disposal.ManagerID != nil {
			managerCalc, err := disposalService.CalculateManagerRewards(*disposal.ManagerID, disposal.Category.PointsPerUnit, disposal.Quantity)
			if err == nil {
				resp["manager"] = managerCalc
			}
		}
		return c.JSON(resp)
	})
}
