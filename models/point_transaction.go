package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionEarned  TransactionType = "EARNED"
	TransactionSpent   TransactionType = "SPENT"
	TransactionBonus   TransactionType = "BONUS"
	TransactionPenalty TransactionType = "PENALTY"
)

// PointTransaction is an append-only audit ledger entry written alongside
// every mutation of User.Points. The counter on User is authoritative; the
// ledger is advisory and checked by a scheduled drift audit.
type PointTransaction struct {
	ID          string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string          `gorm:"type:uuid;index;not null" json:"user_id"`
	Type        TransactionType `gorm:"size:16;not null" json:"type"`
	Amount      int             `gorm:"not null" json:"amount"` // negative for SPENT/PENALTY
	Description string          `gorm:"size:255" json:"description,omitempty"`
	Reference   string          `gorm:"size:64;index" json:"reference,omitempty"` // source entity id

	Timestamps
}

func (t *PointTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
