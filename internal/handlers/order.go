package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/metrics"
	"github.com/example/atelier/internal/middleware"
	"github.com/example/atelier/internal/models"
	"github.com/example/atelier/internal/services"
	"github.com/example/atelier/internal/utils"
)

// OrderHandler serves order creation, listing, and lifecycle endpoints.
type OrderHandler struct {
	db     *gorm.DB
	orders *services.OrderService
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(db *gorm.DB, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{db: db, orders: orders}
}

type createOrderRequest struct {
	ProductName      string            `json:"product_name"`
	CustomerName     string            `json:"customer_name"`
	UserID           *uuid.UUID        `json:"user_id"`
	TailorID         uuid.UUID         `json:"tailor_id"`
	DesignID         *uuid.UUID        `json:"design_id"`
	Price            decimal.Decimal   `json:"price"`
	TxHash           string            `json:"tx_hash"`
	PaymentMethod    string            `json:"payment_method"`
	Description      string            `json:"description"`
	Measurements     map[string]string `json:"measurements"`
	DeliveryMethod   string            `json:"delivery_method"`
	DeliveryAddress  string            `json:"delivery_address"`
	DeliveryTimeline string            `json:"delivery_timeline"`
}

// Create places a new order. Guest checkout is allowed: user_id may be nil.
func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.ProductName == "" || req.CustomerName == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}
	if req.Price.Sign() <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "price must be positive")
	}

	var tailor models.User
	if err := h.db.First(&tailor, "id = ?", req.TailorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "tailor not found")
		}
		return err
	}
	if !tailor.IsTailor() {
		return fiber.NewError(fiber.StatusBadRequest, "target user is not a tailor")
	}

	measurements := datatypes.JSONMap{}
	for k, v := range req.Measurements {
		measurements[k] = v
	}

	order := models.Order{
		ProductName:      req.ProductName,
		CustomerName:     req.CustomerName,
		UserID:           req.UserID,
		TailorID:         req.TailorID,
		DesignID:         req.DesignID,
		Price:            req.Price,
		TxHash:           req.TxHash,
		PaymentMethod:    req.PaymentMethod,
		Description:      req.Description,
		Measurements:     measurements,
		DeliveryMethod:   req.DeliveryMethod,
		DeliveryAddress:  req.DeliveryAddress,
		DeliveryTimeline: req.DeliveryTimeline,
		Progress:         datatypes.JSONMap{},
	}

	if err := h.orders.Create(c.Context(), &order); err != nil {
		return err
	}
	metrics.OrdersCreated.Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

// List returns the authenticated customer's orders.
func (h *OrderHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	p := utils.ParsePagination(c)

	var orders []models.Order
	err := h.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(p.Limit).Offset(p.Offset).
		Find(&orders).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
	})
}

// Get returns one order. Only the order's customer or tailor may view it.
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	order, err := h.loadParticipant(c)
	if err != nil {
		return err
	}

	if err := h.db.Preload("User").Preload("Tailor").First(order, "id = ?", order.ID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

// Accept accepts a pending order. Tailor-only, deadline-checked.
func (h *OrderHandler) Accept(c *fiber.Ctx) error {
	return h.decide(c, true)
}

// Reject rejects a pending order. Tailor-only, deadline-checked.
func (h *OrderHandler) Reject(c *fiber.Ctx) error {
	return h.decide(c, false)
}

func (h *OrderHandler) decide(c *fiber.Ctx, accept bool) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.Decide(c.Context(), orderID, userID, accept)
	if err != nil {
		return orderServiceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus applies a direct status transition. Accept/reject go through
// their own endpoints; this covers ACCEPTED to COMPLETED.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.SetStatus(c.Context(), orderID, userID, req.Status)
	if err != nil {
		return orderServiceError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"order":   order,
	})
}

type progressRequest struct {
	Milestone string `json:"milestone"`
	Done      bool   `json:"done"`
}

// UpdateProgress marks a milestone; completing every milestone
// auto-completes the order.
func (h *OrderHandler) UpdateProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req progressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.UpdateProgress(c.Context(), orderID, userID, req.Milestone, req.Done)
	if err != nil {
		return orderServiceError(err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"order":    order,
		"progress": order.Progress,
	})
}

// Summary returns the tailor dashboard metrics.
func (h *OrderHandler) Summary(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	m, err := h.orders.Metrics(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"summary": m,
	})
}

// Recent returns the tailor's most recent orders.
func (h *OrderHandler) Recent(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	p := utils.ParsePagination(c)

	var orders []models.Order
	err := h.db.Preload("User").
		Where("tailor_id = ?", userID).
		Order("created_at desc").
		Limit(p.Limit).Offset(p.Offset).
		Find(&orders).Error
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
	})
}

// PendingAcceptance returns PENDING orders still inside their deadline.
func (h *OrderHandler) PendingAcceptance(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	p := utils.ParsePagination(c)

	orders, err := h.orders.PendingAcceptance(c.Context(), userID, p.Limit, p.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  orders,
	})
}

// CheckDeadlines manually triggers the expiry sweep. Kept alongside the
// cron job so operators can force a pass.
func (h *OrderHandler) CheckDeadlines(c *fiber.Ctx) error {
	count, err := h.orders.ExpireOverdue(c.Context())
	if err != nil {
		return err
	}
	if count > 0 {
		metrics.OrdersExpired.Add(float64(count))
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"processed": count,
	})
}

// loadParticipant fetches the order addressed by :id and verifies the
// caller is its customer or tailor.
func (h *OrderHandler) loadParticipant(c *fiber.Ctx) (*models.Order, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}

	orderID, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil, err
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return nil, err
	}

	isCustomer := order.UserID != nil && *order.UserID == userID
	if !isCustomer && order.TailorID != userID {
		return nil, fiber.NewError(fiber.StatusForbidden, "you don't have permission to view this order")
	}

	return &order, nil
}

func orderServiceError(err error) error {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNotOwner):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrDeadlinePassed), errors.Is(err, services.ErrNotPending),
		errors.Is(err, services.ErrUnknownMilestone), errors.Is(err, services.ErrBadTransition),
		errors.Is(err, services.ErrNotAccepted):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}
