package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Design is a product offered by a tailor. Only the owning tailor may
// update or delete it.
type Design struct {
	BaseModel
	TailorID        uuid.UUID       `gorm:"type:uuid;index" json:"tailor_id"`
	Tailor          *User           `gorm:"foreignKey:TailorID" json:"tailor,omitempty"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `gorm:"type:numeric" json:"price"`
	ImageURL        string          `json:"image_url"`
	AverageTimeline string          `json:"average_timeline"`
}
