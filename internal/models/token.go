package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TailorToken is a registry entry for a loyalty token mint created by a
// tailor. Minting itself happens on-chain from the tailor's wallet; the
// server only records the result.
type TailorToken struct {
	BaseModel
	TailorID      uuid.UUID       `gorm:"type:uuid;index" json:"tailor_id"`
	Tailor        *User           `gorm:"foreignKey:TailorID" json:"tailor,omitempty"`
	MintAddress   string          `gorm:"uniqueIndex" json:"mint_address"`
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	Decimals      int             `gorm:"default:9" json:"decimals"`
	InitialSupply decimal.Decimal `gorm:"type:numeric" json:"initial_supply"`
	TxSignature   string          `json:"tx_signature"`
}
