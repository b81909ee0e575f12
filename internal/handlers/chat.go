package handlers

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/atelier/internal/metrics"
	"github.com/example/atelier/internal/middleware"
	"github.com/example/atelier/internal/models"
	"github.com/example/atelier/internal/services"
)

const maxChatMessageLen = 1000

// ChatHandler serves order chat: history, sending, and the live stream.
type ChatHandler struct {
	db  *gorm.DB
	hub *services.ChatHub
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(db *gorm.DB, hub *services.ChatHub) *ChatHandler {
	return &ChatHandler{db: db, hub: hub}
}

type chatMessageView struct {
	ID         uuid.UUID `json:"id"`
	Sender     string    `json:"sender"`
	Message    string    `json:"message"`
	SenderName string    `json:"sender_name,omitempty"`
	Timestamp  string    `json:"timestamp"`
}

// History returns an order's messages, oldest first. Participants only.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	order, err := h.loadParticipantOrder(c)
	if err != nil {
		return err
	}

	var messages []models.OrderChatMessage
	err = h.db.Preload("User").
		Where("order_id = ?", order.ID).
		Order("created_at asc").
		Find(&messages).Error
	if err != nil {
		return err
	}

	views := make([]chatMessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, messageView(&m))
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"messages": views,
	})
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// Send appends a message to the order chat and broadcasts it to connected
// stream clients. The sender role is derived from which side of the order
// the caller is on, never taken from the request.
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	order, err := h.loadParticipantOrder(c)
	if err != nil {
		return err
	}
	userID, _ := middleware.GetCurrentUserID(c)

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" || len(req.Message) > maxChatMessageLen {
		return fiber.NewError(fiber.StatusBadRequest, "message must be between 1 and 1000 characters")
	}

	sender := models.ChatSenderCustomer
	if order.TailorID == userID {
		sender = models.ChatSenderTailor
	}

	message := models.OrderChatMessage{
		OrderID: order.ID,
		UserID:  &userID,
		Sender:  sender,
		Message: req.Message,
	}

	if err := h.db.Create(&message).Error; err != nil {
		return err
	}
	metrics.ChatMessages.WithLabelValues(sender).Inc()

	h.hub.Broadcast(order.ID, messageView(&message))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"message_id": message.ID,
	})
}

// Stream upgrades to a websocket and pushes new messages for the order as
// they arrive. Authorization ran in the upgrade middleware.
func (h *ChatHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		orderID, ok := conn.Locals("chatOrderID").(uuid.UUID)
		if !ok {
			conn.Close()
			return
		}

		h.hub.Register(orderID, conn)
		defer func() {
			h.hub.Unregister(orderID, conn)
			conn.Close()
		}()

		// Reads only keep the connection alive; messages are sent over HTTP.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// StreamUpgrade authorizes the websocket handshake: participants only.
func (h *ChatHandler) StreamUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	order, err := h.loadParticipantOrder(c)
	if err != nil {
		return err
	}

	c.Locals("chatOrderID", order.ID)
	return c.Next()
}

func (h *ChatHandler) loadParticipantOrder(c *fiber.Ctx) (*models.Order, error) {
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
		return nil, fiber.NewError(fiber.StatusForbidden, "you don't have permission to access this order's chat")
	}

	return &order, nil
}

func messageView(m *models.OrderChatMessage) chatMessageView {
	view := chatMessageView{
		ID:        m.ID,
		Sender:    m.Sender,
		Message:   m.Message,
		Timestamp: m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if m.User != nil {
		view.SenderName = m.User.DisplayName()
	}
	return view
}
