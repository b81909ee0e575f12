package models

import (
	"time"

	"github.com/google/uuid"
)

// Account types.
const (
	AccountTypeCustomer = "CUSTOMER"
	AccountTypeTailor   = "TAILOR"
)

// User represents a customer or a tailor. Either email or phone must be
// present; the wallet address is attached later, when a wallet connects.
type User struct {
	BaseModel
	Email         *string  `gorm:"uniqueIndex" json:"email"`
	Phone         *string  `gorm:"uniqueIndex" json:"phone"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	WalletAddress *string  `gorm:"index" json:"wallet_address"`
	AccountType   string   `gorm:"default:CUSTOMER" json:"account_type"`
	Designs       []Design `gorm:"foreignKey:TailorID" json:"designs,omitempty"`
	Orders        []Order  `gorm:"foreignKey:UserID" json:"orders,omitempty"`
}

// IsTailor reports whether the user holds a tailor account.
func (u *User) IsTailor() bool {
	return u.AccountType == AccountTypeTailor
}

// DisplayName joins the user's first and last name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

// OTPVerification holds the single active one-time code for a user.
// Rows are upserted per user, never accumulated as history.
type OTPVerification struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	CodeHash  string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
}

// WaitlistEntry records an early-access signup.
type WaitlistEntry struct {
	BaseModel
	Contact string `json:"contact"`
	Name    string `json:"name"`
	IsEmail bool   `json:"is_email"`
}
