package services

import (
	"errors"
	"fmt"
	"time"

	"recycly-backend/models"
	"recycly-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type RewardService struct {
	DB *gorm.DB
}

func NewRewardService(db *gorm.DB) *RewardService {
	return &RewardService{DB: db}
}

// --- Admin handlers ---

// CreateReward creates a new catalog entry (Admin only).
func (s *RewardService) CreateReward(c *fiber.Ctx) error {
	var req struct {
		Title       string              `json:"title"`
		Description string              `json:"description"`
		ImageURL    string              `json:"image_url"`
		PointsCost  int                 `json:"points_cost"`
		Stock       *int                `json:"stock"`
		ExpiryDate  *time.Time          `json:"expiry_date"`
		Status      models.RewardStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Title is required"})
	}
	if req.PointsCost <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Points cost must be positive"})
	}
	if req.Status == "" {
		req.Status = models.RewardStatusDraft
	}

	reward := models.Reward{
		Title:       req.Title,
		Slug:        slug.Make(req.Title),
		Description: utils.SanitizeText(req.Description),
		ImageURL:    req.ImageURL,
		PointsCost:  req.PointsCost,
		Stock:       -1,
		ExpiryDate:  req.ExpiryDate,
		Status:      req.Status,
	}
	if req.Stock != nil {
		reward.Stock = *req.Stock
	}

	if err := s.DB.Create(&reward).Error; err != nil {
		utils.Sugar.Errorw("failed to create reward", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create reward"})
	}
	return c.Status(fiber.StatusCreated).JSON(reward)
}

// UpdateReward updates an existing catalog entry (Admin only).
func (s *RewardService) UpdateReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Title       *string              `json:"title"`
		Description *string              `json:"description"`
		ImageURL    *string              `json:"image_url"`
		PointsCost  *int                 `json:"points_cost"`
		Stock       *int                 `json:"stock"`
		ExpiryDate  *time.Time           `json:"expiry_date"`
		Status      *models.RewardStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		reward.Title = *req.Title
		reward.Slug = slug.Make(*req.Title)
	}
	if req.Description != nil {
		reward.Description = utils.SanitizeText(*req.Description)
	}
	if req.ImageURL != nil {
		reward.ImageURL = *req.ImageURL
	}
	if req.PointsCost != nil {
		if *req.PointsCost <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Points cost must be positive"})
		}
		reward.PointsCost = *req.PointsCost
	}
	if req.Stock != nil {
		reward.Stock = *req.Stock
	}
	if req.ExpiryDate != nil {
		reward.ExpiryDate = req.ExpiryDate
	}
	if req.Status != nil {
		reward.Status = *req.Status
	}

	if err := s.DB.Save(&reward).Error; err != nil {
		utils.Sugar.Errorw("failed to update reward", "reward_id", id, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update reward"})
	}
	return c.JSON(reward)
}

// DeleteReward soft-deletes a catalog entry (Admin only).
func (s *RewardService) DeleteReward(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	var reward models.Reward
	if err := s.DB.First(&reward, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if err := s.DB.Delete(&reward).Error; err != nil {
		utils.Sugar.Errorw("failed to delete reward", "reward_id", id, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete reward"})
	}
	return c.JSON(fiber.Map{"message": "Reward deleted successfully"})
}

// GetAllRewards lists the full catalog regardless of status (Admin only).
func (s *RewardService) GetAllRewards(c *fiber.Ctx) error {
	var rewards []models.Reward
	if err := s.DB.Order("created_at DESC").Find(&rewards).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// --- User handlers ---

// GetCatalog lists currently redeemable rewards.
func (s *RewardService) GetCatalog(c *fiber.Ctx) error {
	now := time.Now()
	var rewards []models.Reward
	err := s.DB.
		Where("status = ?", models.RewardStatusPublished).
		Where("(expiry_date IS NULL OR expiry_date >= ?)", now).
		Where("stock != 0").
		Order("points_cost ASC").
		Find(&rewards).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch rewards"})
	}
	return c.JSON(rewards)
}

// RedeemReward deducts the points cost and opens a PENDING redemption.
func (s *RewardService) RedeemReward(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	rewardID := c.Params("id")
	if _, err := uuid.Parse(rewardID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid reward ID"})
	}

	redemption, err := s.Redeem(userID, rewardID)
	switch {
	case errors.Is(err, ErrRewardNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Reward not found"})
	case errors.Is(err, ErrRewardUnavailable):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Reward is not available for redemption"})
	case errors.Is(err, ErrInsufficientPoints):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Insufficient points"})
	case err != nil:
		utils.Sugar.Errorw("redeem failed", "user_id", userID, "reward_id", rewardID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to redeem reward"})
	}
	return c.Status(fiber.StatusCreated).JSON(redemption)
}

// MyRedemptions lists the authenticated user's redemption history.
func (s *RewardService) MyRedemptions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	var redemptions []models.UserReward
	err := s.DB.Preload("Reward").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&redemptions).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch redemptions"})
	}
	return c.JSON(redemptions)
}

// ResolveRedemptionHandler lets an admin approve, reject or complete a
// pending redemption.
func (s *RewardService) ResolveRedemptionHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	var req struct {
		Status models.RedemptionStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	redemption, err := s.ResolveRedemption(id, req.Status)
	switch {
	case errors.Is(err, ErrRedemptionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Redemption not found"})
	case errors.Is(err, ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Illegal status transition"})
	case err != nil:
		utils.Sugar.Errorw("redemption resolution failed", "redemption_id", id, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update redemption"})
	}
	return c.JSON(redemption)
}

// ListPendingRedemptions lists open redemption requests (Admin only).
func (s *RewardService) ListPendingRedemptions(c *fiber.Ctx) error {
	var redemptions []models.UserReward
	err := s.DB.Preload("Reward").
		Where("status = ?", models.RedemptionStatusPending).
		Order("created_at ASC").
		Find(&redemptions).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch redemptions"})
	}
	return c.JSON(redemptions)
}

// --- Core operations ---

// Redeem performs the redemption transaction: availability check, guarded
// point deduction, stock decrement and the PENDING redemption row.
func (s *RewardService) Redeem(userID, rewardID string) (*models.UserReward, error) {
	points := NewPointsService(s.DB)
	var redemption models.UserReward

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var reward models.Reward
		if err := tx.First(&reward, "id = ?", rewardID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRewardNotFound
			}
			return err
		}
		if !reward.Available(time.Now()) {
			return ErrRewardUnavailable
		}

		if err := points.SpendPointsTx(tx, userID, reward.PointsCost,
			fmt.Sprintf("Redeemed reward: %s", reward.Title), reward.ID); err != nil {
			return err
		}

		if reward.Stock > 0 {
			res := tx.Model(&models.Reward{}).
				Where("id = ? AND stock > 0", reward.ID).
				Update("stock", gorm.Expr("stock - 1"))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrRewardUnavailable
			}
		}

		redemption = models.UserReward{
			UserID:      userID,
			RewardID:    reward.ID,
			PointsSpent: reward.PointsCost,
			Status:      models.RedemptionStatusPending,
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return err
		}

		notif := models.Notification{
			UserID:  userID,
			Type:    models.NotificationRedemption,
			Title:   "Redemption requested",
			Message: fmt.Sprintf("Your redemption of \"%s\" (%d points) is pending approval", reward.Title, reward.PointsCost),
		}
		return tx.Create(&notif).Error
	})
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

// ResolveRedemption moves a redemption through its lifecycle. Rejection
// refunds the points spent and restores stock; completion triggers the
// achievement check for REWARDS_REDEEMED rules.
func (s *RewardService) ResolveRedemption(redemptionID string, to models.RedemptionStatus) (*models.UserReward, error) {
	points := NewPointsService(s.DB)
	achievements := NewAchievementService(s.DB)
	var redemption models.UserReward

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Reward").First(&redemption, "id = ?", redemptionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRedemptionNotFound
			}
			return err
		}
		if !redemption.Status.CanTransition(to) {
			return ErrInvalidTransition
		}

		title := redemption.RewardID
		if redemption.Reward != nil {
			title = redemption.Reward.Title
		}

		updates := map[string]interface{}{"status": to}

		switch to {
		case models.RedemptionStatusRejected:
			if !redemption.Refunded {
				if err := points.AddPointsTx(tx, redemption.UserID, redemption.PointsSpent,
					models.TransactionEarned,
					fmt.Sprintf("Refund for rejected redemption: %s", title),
					redemption.ID); err != nil {
					return err
				}
				updates["refunded"] = true
			}
			if redemption.Reward != nil && redemption.Reward.Stock >= 0 {
				if err := tx.Model(&models.Reward{}).
					Where("id = ?", redemption.RewardID).
					Update("stock", gorm.Expr("stock + 1")).Error; err != nil {
					return err
				}
			}
		case models.RedemptionStatusCompleted:
			if err := tx.Model(&redemption).Updates(updates).Error; err != nil {
				return err
			}
			// status must be COMPLETED before the redeemed-count rules run
			if err := achievements.CheckAndAwardTx(tx, redemption.UserID); err != nil {
				return err
			}
			redemption.Status = to
			return s.notifyResolutionTx(tx, &redemption, title)
		}

		if err := tx.Model(&redemption).Updates(updates).Error; err != nil {
			return err
		}
		redemption.Status = to
		if refunded, ok := updates["refunded"].(bool); ok {
			redemption.Refunded = refunded
		}
		return s.notifyResolutionTx(tx, &redemption, title)
	})
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (s *RewardService) notifyResolutionTx(tx *gorm.DB, redemption *models.UserReward, title string) error {
	var msg string
	switch redemption.Status {
	case models.RedemptionStatusApproved:
		msg = fmt.Sprintf("Your redemption of \"%s\" was approved", title)
	case models.RedemptionStatusRejected:
		msg = fmt.Sprintf("Your redemption of \"%s\" was rejected; %d points refunded", title, redemption.PointsSpent)
	case models.RedemptionStatusCompleted:
		msg = fmt.Sprintf("Your redemption of \"%s\" is complete", title)
	default:
		return nil
	}
	notif := models.Notification{
		UserID:  redemption.UserID,
		Type:    models.NotificationRedemption,
		Title:   "Redemption update",
		Message: msg,
	}
	return tx.Create(&notif).Error
}
