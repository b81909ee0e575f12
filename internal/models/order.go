package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Order statuses.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusAccepted  = "ACCEPTED"
	OrderStatusRejected  = "REJECTED"
	OrderStatusCompleted = "COMPLETED"
)

// AcceptanceWindow is how long a tailor has to accept or reject a new order.
const AcceptanceWindow = 48 * time.Hour

// Chat sender roles.
const (
	ChatSenderCustomer = "CUSTOMER"
	ChatSenderTailor   = "TAILOR"
	ChatSenderSystem   = "SYSTEM"
)

// Order is a customer's purchase of a design from a tailor. UserID is nil
// for guest checkouts.
type Order struct {
	BaseModel
	OrderNumber        string             `gorm:"uniqueIndex" json:"order_number"`
	UserID             *uuid.UUID         `gorm:"type:uuid;index" json:"user_id"`
	User               *User              `json:"user,omitempty"`
	TailorID           uuid.UUID          `gorm:"type:uuid;index" json:"tailor_id"`
	Tailor             *User              `gorm:"foreignKey:TailorID" json:"tailor,omitempty"`
	DesignID           *uuid.UUID         `gorm:"type:uuid" json:"design_id"`
	CustomerName       string             `json:"customer_name"`
	ProductName        string             `json:"product_name"`
	Status             string             `gorm:"index;default:PENDING" json:"status"`
	Price              decimal.Decimal    `gorm:"type:numeric" json:"price"`
	Currency           string             `gorm:"default:USDC" json:"currency"`
	TxHash             string             `json:"tx_hash"`
	PaymentMethod      string             `json:"payment_method"`
	Description        string             `json:"description"`
	Measurements       datatypes.JSONMap  `json:"measurements"`
	DeliveryMethod     string             `json:"delivery_method"`
	DeliveryAddress    string             `json:"delivery_address"`
	DeliveryTimeline   string             `json:"delivery_timeline"`
	AcceptanceDeadline time.Time          `json:"acceptance_deadline"`
	IsAccepted         bool               `json:"is_accepted"`
	AcceptedAt         *time.Time         `json:"accepted_at"`
	Progress           datatypes.JSONMap  `json:"progress"`
	Messages           []OrderChatMessage `gorm:"foreignKey:OrderID" json:"messages,omitempty"`
}

// BeforeCreate assigns the record ID and pins the acceptance deadline to
// exactly 48 hours after creation.
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if err := o.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	if o.AcceptanceDeadline.IsZero() {
		o.AcceptanceDeadline = o.CreatedAt.Add(AcceptanceWindow)
	}
	return nil
}

// DeadlinePassed reports whether the acceptance window has closed.
func (o *Order) DeadlinePassed(now time.Time) bool {
	return now.After(o.AcceptanceDeadline)
}

// ProgressMilestones are the tailor-driven steps toward completion, in order.
var ProgressMilestones = []string{
	"materials_sourced",
	"cutting_complete",
	"sewing_progress",
	"quality_check",
	"ready_for_delivery",
}

// ProgressComplete reports whether every milestone is marked done.
func (o *Order) ProgressComplete() bool {
	for _, m := range ProgressMilestones {
		done, ok := o.Progress[m].(bool)
		if !ok || !done {
			return false
		}
	}
	return true
}

// OrderChatMessage is a message attached to an order. UserID is nil for
// SYSTEM messages.
type OrderChatMessage struct {
	BaseModel
	OrderID uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	UserID  *uuid.UUID `gorm:"type:uuid" json:"user_id"`
	User    *User      `json:"user,omitempty"`
	Sender  string     `json:"sender"`
	Message string     `json:"message"`
}
