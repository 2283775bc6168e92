package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WasteCategory is a catalog entry carrying the per-kg point rate used by the
// reward calculator. Seeded at startup, editable by admins.
type WasteCategory struct {
	ID            string  `gorm:"primaryKey;type:uuid" json:"id"`
	Name          string  `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Description   string  `gorm:"type:text" json:"description,omitempty"`
	PointsPerUnit float64 `gorm:"not null" json:"points_per_unit"` // points per kg
	IconURL       string  `gorm:"type:text" json:"icon_url,omitempty"`
	Active        bool    `gorm:"default:true" json:"active"`

	Timestamps
}

func (c *WasteCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// DefaultWasteCategories seeds the rate table on first boot.
var DefaultWasteCategories = []WasteCategory{
	{Name: "Plastic", Description: "Bottles, packaging, containers", PointsPerUnit: 10, Active: true},
	{Name: "Paper", Description: "Newspapers, cardboard, office paper", PointsPerUnit: 5, Active: true},
	{Name: "Glass", Description: "Bottles and jars", PointsPerUnit: 8, Active: true},
	{Name: "Metal", Description: "Cans, scrap metal", PointsPerUnit: 15, Active: true},
	{Name: "Electronic", Description: "E-waste, batteries, small appliances", PointsPerUnit: 25, Active: true},
	{Name: "Organic", Description: "Compostable food and garden waste", PointsPerUnit: 3, Active: true},
}

// DisposalStatus is the lifecycle of a waste disposal submission.
type DisposalStatus string

const (
	DisposalStatusPending    DisposalStatus = "PENDING"
	DisposalStatusApproved   DisposalStatus = "APPROVED"
	DisposalStatusInProgress DisposalStatus = "IN_PROGRESS"
	DisposalStatusCompleted  DisposalStatus = "COMPLETED"
	DisposalStatusRejected   DisposalStatus = "REJECTED"
)

// disposalTransitions is the single source of truth for legal status moves.
// COMPLETED and REJECTED are terminal.
var disposalTransitions = map[DisposalStatus][]DisposalStatus{
	DisposalStatusPending:    {DisposalStatusApproved, DisposalStatusRejected},
	DisposalStatusApproved:   {DisposalStatusInProgress, DisposalStatusRejected},
	DisposalStatusInProgress: {DisposalStatusCompleted, DisposalStatusRejected},
}

// CanTransition reports whether a disposal may move from one status to another.
func (s DisposalStatus) CanTransition(to DisposalStatus) bool {
	for _, allowed := range disposalTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// WasteDisposal records one disposal event submitted by a user and processed
// by a waste manager. PointsEarned is written exactly once, when rewards are
// distributed; RewardsDistributed is the one-shot guard that keeps a
// completed disposal from being credited twice.
type WasteDisposal struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string         `gorm:"type:uuid;index;not null" json:"user_id"`
	CategoryID string         `gorm:"type:uuid;index;not null" json:"category_id"`
	ManagerID  *string        `gorm:"type:uuid;index" json:"manager_id,omitempty"`
	Quantity   float64        `gorm:"not null" json:"quantity"` // kg
	Status     DisposalStatus `gorm:"size:16;not null;default:'PENDING';index" json:"status"`
	Notes      string         `gorm:"type:text" json:"notes,omitempty"`
	PhotoURL   string         `gorm:"type:text" json:"photo_url,omitempty"`

	PointsEarned        int        `gorm:"default:0" json:"points_earned"`
	ManagerPointsEarned int        `gorm:"default:0" json:"manager_points_earned"`
	RewardsDistributed  bool       `gorm:"default:false" json:"rewards_distributed"`
	RejectionReason     string     `gorm:"size:255" json:"rejection_reason,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`

	User     *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Category *WasteCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Manager  *User          `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`

	Timestamps
}

func (d *WasteDisposal) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = DisposalStatusPending
	}
	return nil
}
