package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType tags the event that produced a notification.
type NotificationType string

const (
	NotificationReward      NotificationType = "REWARD"
	NotificationAchievement NotificationType = "ACHIEVEMENT"
	NotificationDisposal    NotificationType = "DISPOSAL"
	NotificationRedemption  NotificationType = "REDEMPTION"
	NotificationSystem      NotificationType = "SYSTEM"
)

// Notification is an in-app message. Delivered marks that the background
// worker has attempted email/push delivery; Read is controlled by the user.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string           `gorm:"type:uuid;index;not null" json:"user_id"`
	Type      NotificationType `gorm:"size:16;not null" json:"type"`
	Title     string           `gorm:"size:128;not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Read      bool             `gorm:"default:false;index" json:"read"`
	Delivered bool             `gorm:"default:false;index" json:"-"`

	Timestamps
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
