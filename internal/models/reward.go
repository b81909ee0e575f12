package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reward types.
const (
	RewardTypeDiscount = "DISCOUNT"
	RewardTypeFreeItem = "FREE_ITEM"
	RewardTypePoints   = "POINTS"
	RewardTypePriority = "PRIORITY"
)

// ValidRewardType reports whether t is one of the known reward types.
func ValidRewardType(t string) bool {
	switch t {
	case RewardTypeDiscount, RewardTypeFreeItem, RewardTypePoints, RewardTypePriority:
		return true
	}
	return false
}

// Reward is a tailor-defined redeemable benefit with a validity window and
// an optional redemption cap.
type Reward struct {
	BaseModel
	TailorID        uuid.UUID        `gorm:"type:uuid;index" json:"tailor_id"`
	Tailor          *User            `gorm:"foreignKey:TailorID" json:"tailor,omitempty"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Type            string           `json:"type"`
	Value           decimal.Decimal  `gorm:"type:numeric" json:"value"`
	MinSpend        *decimal.Decimal `gorm:"type:numeric" json:"min_spend"`
	StartDate       time.Time        `json:"start_date"`
	EndDate         time.Time        `json:"end_date"`
	IsActive        bool             `gorm:"default:true" json:"is_active"`
	ImageURL        string           `json:"image_url"`
	MaxRedemptions  *int             `json:"max_redemptions"`
	RedemptionCount int              `json:"redemption_count"`
}

// Redeemable reports whether the reward can be redeemed at the given time.
func (r *Reward) Redeemable(now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if now.Before(r.StartDate) || now.After(r.EndDate) {
		return false
	}
	if r.MaxRedemptions != nil && r.RedemptionCount >= *r.MaxRedemptions {
		return false
	}
	return true
}

// RewardRedemption records a single redemption of a reward by a customer.
type RewardRedemption struct {
	BaseModel
	RewardID uuid.UUID `gorm:"type:uuid;index" json:"reward_id"`
	UserID   uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
}
