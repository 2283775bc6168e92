package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role determines which part of the dashboard and API a user may access.
type Role string

const (
	RoleUser         Role = "USER"
	RoleWasteManager Role = "WASTE_MANAGER"
	RoleAdmin        Role = "ADMIN"
	RoleSuperAdmin   Role = "SUPER_ADMIN"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleWasteManager, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User is a Recycly account. Passwords are stored as bcrypt hashes only.
// Points and Level are the shared mutable counters of the whole system:
// every mutation must go through the atomic add/spend operations in the
// points service so that level stays consistent with
// level = points/100 + 1 (integer division).
type User struct {
	ID               string     `gorm:"primaryKey;type:uuid" json:"id"`
	Username         string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email            string     `gorm:"size:255;uniqueIndex" json:"email"`
	PasswordHash     string     `gorm:"size:255" json:"-"`
	Provider         string     `gorm:"size:32" json:"provider,omitempty"`
	ProviderID       string     `gorm:"size:255" json:"-"`
	Role             Role       `gorm:"size:16;not null;default:'USER'" json:"role"`
	Points           int        `gorm:"not null;default:0" json:"points"`
	Level            int        `gorm:"not null;default:1" json:"level"`
	TwoFactorEnabled bool       `gorm:"default:false" json:"two_factor_enabled"`
	AvatarURL        string     `gorm:"size:512" json:"avatar_url,omitempty"`
	Phone            string     `gorm:"size:32" json:"phone,omitempty"`
	Address          string     `gorm:"size:255" json:"address,omitempty"`
	DeviceToken      string     `gorm:"size:512" json:"-"` // FCM registration token
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times plus soft delete.
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns a UUID when none was provided so the model works on
// both Postgres and the in-memory SQLite used in tests.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Level < 1 {
		u.Level = 1
	}
	return nil
}

// PublicUser is the sanitized shape returned to other users.
type PublicUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Points    int    `json:"points"`
	Level     int    `json:"level"`
}

// Public strips private fields for leaderboards and public profiles.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Points:    u.Points,
		Level:     u.Level,
	}
}
