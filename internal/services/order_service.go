package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/models"
)

// Typed order errors, mapped to HTTP statuses at the handler boundary.
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrNotOwner         = errors.New("caller does not own this resource")
	ErrDeadlinePassed   = errors.New("the acceptance deadline has passed")
	ErrNotPending       = errors.New("order is no longer pending")
	ErrUnknownMilestone = errors.New("unknown progress milestone")
	ErrBadTransition    = errors.New("invalid status transition")
	ErrNotAccepted      = errors.New("order has not been accepted")
)

// OrderMetrics summarizes a tailor's order book.
type OrderMetrics struct {
	TotalOrders     int64           `json:"total_orders"`
	PendingOrders   int64           `json:"pending_orders"`
	CompletedOrders int64           `json:"completed_orders"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
}

// OrderService owns order lifecycle rules: numbering, the acceptance
// deadline, progress tracking, and the expiry sweep.
type OrderService struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, log zerolog.Logger) *OrderService {
	return &OrderService{db: db, log: log.With().Str("component", "orders").Logger()}
}

// Create persists a new PENDING order. The acceptance deadline is pinned by
// the model hook to exactly 48 hours after creation.
func (s *OrderService) Create(ctx context.Context, order *models.Order) error {
	number, err := GenerateOrderNumber()
	if err != nil {
		return err
	}
	order.OrderNumber = number
	order.Status = models.OrderStatusPending

	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}

	s.systemMessage(ctx, order.ID, fmt.Sprintf("Order %s placed. The tailor has 48 hours to accept.", order.OrderNumber))
	return nil
}

// Decide accepts or rejects a pending order on behalf of its tailor.
// Expiry is checked lazily here as well as by the sweep: a decision after
// the deadline fails without changing status.
func (s *OrderService) Decide(ctx context.Context, orderID, tailorID uuid.UUID, accept bool) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.TailorID != tailorID {
		return nil, ErrNotOwner
	}
	if order.Status != models.OrderStatusPending {
		return nil, ErrNotPending
	}

	now := time.Now()
	if order.DeadlinePassed(now) {
		return nil, ErrDeadlinePassed
	}

	if accept {
		order.Status = models.OrderStatusAccepted
		order.IsAccepted = true
		order.AcceptedAt = &now
	} else {
		order.Status = models.OrderStatusRejected
		order.IsAccepted = false
	}

	if err := s.db.WithContext(ctx).Save(&order).Error; err != nil {
		return nil, err
	}

	if accept {
		s.systemMessage(ctx, order.ID, "Order accepted by the tailor.")
	} else {
		s.systemMessage(ctx, order.ID, "Order rejected by the tailor.")
	}
	return &order, nil
}

// UpdateProgress marks a milestone done or undone. When every milestone is
// done the order auto-completes.
func (s *OrderService) UpdateProgress(ctx context.Context, orderID, tailorID uuid.UUID, milestone string, done bool) (*models.Order, error) {
	valid := false
	for _, m := range models.ProgressMilestones {
		if m == milestone {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrUnknownMilestone
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.TailorID != tailorID {
		return nil, ErrNotOwner
	}

	// Progress tracking only exists between acceptance and completion;
	// pending and rejected orders have no milestones to report.
	if order.Status != models.OrderStatusAccepted {
		return nil, ErrNotAccepted
	}

	if order.Progress == nil {
		order.Progress = datatypes.JSONMap{}
	}
	order.Progress[milestone] = done

	if order.Status == models.OrderStatusAccepted && order.ProgressComplete() {
		order.Status = models.OrderStatusCompleted
		s.systemMessage(ctx, order.ID, "All milestones complete. Order marked as completed.")
	}

	if err := s.db.WithContext(ctx).Save(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// SetStatus applies a direct status transition on behalf of the tailor.
// Only ACCEPTED orders can be moved, and only to COMPLETED; pending orders
// go through Decide so the deadline check cannot be skipped.
func (s *OrderService) SetStatus(ctx context.Context, orderID, tailorID uuid.UUID, status string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.TailorID != tailorID {
		return nil, ErrNotOwner
	}
	if order.Status != models.OrderStatusAccepted || status != models.OrderStatusCompleted {
		return nil, ErrBadTransition
	}

	order.Status = models.OrderStatusCompleted
	if err := s.db.WithContext(ctx).Save(&order).Error; err != nil {
		return nil, err
	}

	s.systemMessage(ctx, order.ID, "Order marked as completed.")
	return &order, nil
}

// Metrics returns the tailor's dashboard summary.
func (s *OrderService) Metrics(ctx context.Context, tailorID uuid.UUID) (*OrderMetrics, error) {
	var m OrderMetrics
	db := s.db.WithContext(ctx).Model(&models.Order{})

	if err := db.Where("tailor_id = ?", tailorID).Count(&m.TotalOrders).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("tailor_id = ? AND status = ?", tailorID, models.OrderStatusPending).
		Count(&m.PendingOrders).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("tailor_id = ? AND status = ?", tailorID, models.OrderStatusCompleted).
		Count(&m.CompletedOrders).Error; err != nil {
		return nil, err
	}

	var revenue []string
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("tailor_id = ? AND status = ?", tailorID, models.OrderStatusCompleted).
		Pluck("price", &revenue).Error
	if err != nil {
		return nil, err
	}

	m.TotalRevenue = decimal.Zero
	for _, p := range revenue {
		d, err := decimal.NewFromString(p)
		if err != nil {
			continue
		}
		m.TotalRevenue = m.TotalRevenue.Add(d)
	}
	return &m, nil
}

// PendingAcceptance lists PENDING orders whose deadline has not passed yet.
func (s *OrderService) PendingAcceptance(ctx context.Context, tailorID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("tailor_id = ? AND status = ? AND is_accepted = ? AND acceptance_deadline > ?",
			tailorID, models.OrderStatusPending, false, time.Now()).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	return orders, err
}

// ExpireOverdue transitions PENDING orders past their deadline to REJECTED
// and returns how many were touched. Called by the cron sweep and by the
// manual trigger endpoint.
func (s *OrderService) ExpireOverdue(ctx context.Context) (int64, error) {
	var expired []models.Order
	err := s.db.WithContext(ctx).
		Where("status = ? AND is_accepted = ? AND acceptance_deadline < ?",
			models.OrderStatusPending, false, time.Now()).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	if len(expired) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(expired))
	for _, o := range expired {
		ids = append(ids, o.ID)
	}

	result := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id IN ?", ids).
		Update("status", models.OrderStatusRejected)
	if result.Error != nil {
		return 0, result.Error
	}

	for _, o := range expired {
		s.systemMessage(ctx, o.ID, "Order automatically rejected: the 48 hour acceptance deadline passed.")
	}

	s.log.Info().Int64("count", result.RowsAffected).Msg("expired overdue orders")
	return result.RowsAffected, nil
}

// systemMessage appends a SYSTEM-role chat message to an order. Failures
// are logged, not propagated; the lifecycle change itself already happened.
func (s *OrderService) systemMessage(ctx context.Context, orderID uuid.UUID, text string) {
	msg := models.OrderChatMessage{
		OrderID: orderID,
		Sender:  models.ChatSenderSystem,
		Message: text,
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID.String()).Msg("failed to record system message")
	}
}

// GenerateOrderNumber returns a number in the form ORD-YYYYMMDD-XXXX.
func GenerateOrderNumber() (string, error) {
	const alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	suffix := make([]byte, 4)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), suffix), nil
}
