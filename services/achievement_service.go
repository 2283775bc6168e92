package services

import (
	"fmt"

	"recycly-backend/models"
	"recycly-backend/utils"

	"gorm.io/gorm"
)

type AchievementService struct {
	DB *gorm.DB
}

func NewAchievementService(db *gorm.DB) *AchievementService {
	return &AchievementService{DB: db}
}

// SeedAchievements inserts the default catalog, keyed by code (idempotent).
func (s *AchievementService) SeedAchievements() error {
	for _, a := range models.DefaultAchievements {
		def := a
		if err := s.DB.Where("code = ?", def.Code).FirstOrCreate(&def).Error; err != nil {
			return fmt.Errorf("seed achievement %s: %w", def.Code, err)
		}
	}
	return nil
}

// CheckAndAwardAchievements evaluates the catalog for a user and grants every
// newly qualified achievement in one transaction.
func (s *AchievementService) CheckAndAwardAchievements(userID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return s.CheckAndAwardTx(tx, userID)
	})
}

// CheckAndAwardTx is the transactional body of the achievement check, shared
// with the disposal pipeline and the redemption flow which run it inside
// their own transactions.
//
// Idempotent by construction: already granted achievements are skipped, and
// bonus points go through the centralized add-points operation so level is
// recomputed with the grant.
func (s *AchievementService) CheckAndAwardTx(tx *gorm.DB, userID string) error {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrUserNotFound
		}
		return err
	}

	var disposalCount int64
	if err := tx.Model(&models.WasteDisposal{}).
		Where("user_id = ? AND status = ?", userID, models.DisposalStatusCompleted).
		Count(&disposalCount).Error; err != nil {
		return err
	}

	var redeemedCount int64
	if err := tx.Model(&models.UserReward{}).
		Where("user_id = ? AND status = ?", userID, models.RedemptionStatusCompleted).
		Count(&redeemedCount).Error; err != nil {
		return err
	}

	var grantedIDs []string
	if err := tx.Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &grantedIDs).Error; err != nil {
		return err
	}
	granted := make(map[string]bool, len(grantedIDs))
	for _, id := range grantedIDs {
		granted[id] = true
	}

	var catalog []models.Achievement
	if err := tx.Where("active = ?", true).Find(&catalog).Error; err != nil {
		return err
	}

	points := NewPointsService(s.DB)
	for _, a := range catalog {
		if granted[a.ID] {
			continue
		}
		if !meetsRequirement(&a, &user, disposalCount, redeemedCount) {
			continue
		}

		ua := models.UserAchievement{UserID: userID, AchievementID: a.ID}
		if err := tx.Create(&ua).Error; err != nil {
			return err
		}
		if a.BonusPoints > 0 {
			desc := fmt.Sprintf("Achievement unlocked: %s", a.Name)
			if err := points.AddPointsTx(tx, userID, a.BonusPoints, models.TransactionBonus, desc, a.ID); err != nil {
				return err
			}
		}

		notif := models.Notification{
			UserID:  userID,
			Type:    models.NotificationAchievement,
			Title:   "Achievement unlocked!",
			Message: fmt.Sprintf("You earned \"%s\" (+%d points)", a.Name, a.BonusPoints),
		}
		if err := tx.Create(&notif).Error; err != nil {
			return err
		}

		utils.Sugar.Infow("achievement granted",
			"user_id", userID, "code", a.Code, "bonus_points", a.BonusPoints)
	}

	return nil
}

func meetsRequirement(a *models.Achievement, user *models.User, disposalCount, redeemedCount int64) bool {
	switch a.Type {
	case models.AchievementWasteCount:
		return disposalCount >= int64(a.Requirement)
	case models.AchievementPointsThreshold:
		return user.Points >= a.Requirement
	case models.AchievementLevelThreshold:
		return user.Level >= a.Requirement
	case models.AchievementRewardsRedeemed:
		return redeemedCount >= int64(a.Requirement)
	case models.AchievementConsecutiveDays:
		// No streak counter is maintained; the rule never passes.
		return false
	}
	return false
}

// ListUserAchievements returns the achievements a user has unlocked.
func (s *AchievementService) ListUserAchievements(userID string) ([]models.UserAchievement, error) {
	var unlocked []models.UserAchievement
	err := s.DB.Preload("Achievement").
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&unlocked).Error
	return unlocked, err
}

// ListCatalog returns all active achievement definitions.
func (s *AchievementService) ListCatalog() ([]models.Achievement, error) {
	var catalog []models.Achievement
	err := s.DB.Where("active = ?", true).Order("requirement ASC").Find(&catalog).Error
	return catalog, err
}
