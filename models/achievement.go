package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AchievementType selects which counter the rule is evaluated against.
type AchievementType string

const (
	AchievementWasteCount      AchievementType = "WASTE_COUNT"
	AchievementPointsThreshold AchievementType = "POINTS_THRESHOLD"
	AchievementLevelThreshold  AchievementType = "LEVEL_THRESHOLD"
	AchievementRewardsRedeemed AchievementType = "REWARDS_REDEEMED"
	// AchievementConsecutiveDays exists in the catalog but no streak counter
	// is maintained, so its rule never passes.
	AchievementConsecutiveDays AchievementType = "CONSECUTIVE_DAYS"
)

// Achievement is a catalog rule definition: reach Requirement on the counter
// selected by Type and earn BonusPoints.
type Achievement struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string          `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Name        string          `gorm:"size:128;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description,omitempty"`
	Type        AchievementType `gorm:"size:24;not null" json:"type"`
	Requirement int             `gorm:"not null" json:"requirement"`
	BonusPoints int             `gorm:"not null;default:0" json:"bonus_points"`
	IconURL     string          `gorm:"type:text" json:"icon_url,omitempty"`
	Active      bool            `gorm:"default:true" json:"active"`

	Timestamps
}

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// UserAchievement is the join row recording an unlocked achievement.
// A (user, achievement) pair exists at most once.
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID string    `gorm:"type:uuid;not null;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"autoCreateTime" json:"unlocked_at"`

	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

func (ua *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if ua.ID == "" {
		ua.ID = uuid.NewString()
	}
	return nil
}

// DefaultAchievements seeds the catalog on first boot.
var DefaultAchievements = []Achievement{
	{Code: "FIRST_DISPOSAL", Name: "First Steps", Description: "Complete your first waste disposal", Type: AchievementWasteCount, Requirement: 1, BonusPoints: 10, Active: true},
	{Code: "DISPOSAL_10", Name: "Regular Recycler", Description: "Complete 10 waste disposals", Type: AchievementWasteCount, Requirement: 10, BonusPoints: 50, Active: true},
	{Code: "DISPOSAL_50", Name: "Waste Warrior", Description: "Complete 50 waste disposals", Type: AchievementWasteCount, Requirement: 50, BonusPoints: 200, Active: true},
	{Code: "POINTS_100", Name: "Century Club", Description: "Earn 100 points", Type: AchievementPointsThreshold, Requirement: 100, BonusPoints: 20, Active: true},
	{Code: "POINTS_1000", Name: "Point Collector", Description: "Earn 1000 points", Type: AchievementPointsThreshold, Requirement: 1000, BonusPoints: 100, Active: true},
	{Code: "LEVEL_5", Name: "Rising Star", Description: "Reach level 5", Type: AchievementLevelThreshold, Requirement: 5, BonusPoints: 50, Active: true},
	{Code: "LEVEL_10", Name: "Eco Champion", Description: "Reach level 10", Type: AchievementLevelThreshold, Requirement: 10, BonusPoints: 150, Active: true},
	{Code: "REDEEM_1", Name: "First Redemption", Description: "Redeem your first reward", Type: AchievementRewardsRedeemed, Requirement: 1, BonusPoints: 15, Active: true},
	{Code: "STREAK_7", Name: "Week Streak", Description: "Recycle 7 days in a row", Type: AchievementConsecutiveDays, Requirement: 7, BonusPoints: 70, Active: true},
}
