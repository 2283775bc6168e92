package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// RewardStatus is the publishing status of a catalog entry.
type RewardStatus string

const (
	RewardStatusDraft     RewardStatus = "draft"
	RewardStatusPublished RewardStatus = "published"
	RewardStatusArchived  RewardStatus = "archived"
)

// Reward is a redemption catalog entry priced in points.
type Reward struct {
	ID          string       `gorm:"primaryKey;type:uuid" json:"id"`
	Title       string       `gorm:"size:128;not null" json:"title"`
	Slug        string       `gorm:"size:160;uniqueIndex" json:"slug"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	ImageURL    string       `gorm:"type:text" json:"image_url,omitempty"`
	PointsCost  int          `gorm:"not null" json:"points_cost"`
	Stock       int          `gorm:"default:-1" json:"stock"` // -1 means unlimited
	Status      RewardStatus `gorm:"size:16;not null;default:'draft';index" json:"status"`
	ExpiryDate  *time.Time   `json:"expiry_date,omitempty"`

	Timestamps
}

func (r *Reward) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Slug == "" {
		r.Slug = slug.Make(r.Title)
	}
	return nil
}

// Available reports whether the reward can currently be redeemed.
func (r *Reward) Available(now time.Time) bool {
	if r.Status != RewardStatusPublished {
		return false
	}
	if r.ExpiryDate != nil && r.ExpiryDate.Before(now) {
		return false
	}
	if r.Stock == 0 {
		return false
	}
	return true
}

// RedemptionStatus is the lifecycle of a redemption attempt.
type RedemptionStatus string

const (
	RedemptionStatusPending   RedemptionStatus = "PENDING"
	RedemptionStatusApproved  RedemptionStatus = "APPROVED"
	RedemptionStatusRejected  RedemptionStatus = "REJECTED"
	RedemptionStatusCompleted RedemptionStatus = "COMPLETED"
)

var redemptionTransitions = map[RedemptionStatus][]RedemptionStatus{
	RedemptionStatusPending:  {RedemptionStatusApproved, RedemptionStatusRejected},
	RedemptionStatusApproved: {RedemptionStatusCompleted, RedemptionStatusRejected},
}

// CanTransition reports whether a redemption may move from one status to another.
func (s RedemptionStatus) CanTransition(to RedemptionStatus) bool {
	for _, allowed := range redemptionTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UserReward records a redemption attempt. PointsSpent is deducted when the
// row is created and refunded if the redemption is rejected.
type UserReward struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string           `gorm:"type:uuid;index;not null" json:"user_id"`
	RewardID    string           `gorm:"type:uuid;index;not null" json:"reward_id"`
	PointsSpent int              `gorm:"not null" json:"points_spent"`
	Status      RedemptionStatus `gorm:"size:16;not null;default:'PENDING';index" json:"status"`
	Refunded    bool             `gorm:"default:false" json:"refunded"`

	Reward *Reward `gorm:"foreignKey:RewardID" json:"reward,omitempty"`

	Timestamps
}

func (ur *UserReward) BeforeCreate(tx *gorm.DB) error {
	if ur.ID == "" {
		ur.ID = uuid.NewString()
	}
	if ur.Status == "" {
		ur.Status = RedemptionStatusPending
	}
	return nil
}
