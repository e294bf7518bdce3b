package handlers

import (
	"context"
	"errors"

	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/digitalcloudassets/kutable-sub001/internal/services"
	"github.com/digitalcloudassets/kutable-sub001/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type conversationLister interface {
	ListConversations(ctx context.Context, userID uuid.UUID) []models.Conversation
}

type messagingService interface {
	GetMessages(ctx context.Context, bookingID uuid.UUID, userID uuid.UUID) ([]models.Message, error)
	SendMessage(ctx context.Context, senderID uuid.UUID, input services.SendMessageInput) (*models.Message, error)
	MarkRead(ctx context.Context, messageID uuid.UUID, userID uuid.UUID) (int64, error)
	MarkConversationRead(ctx context.Context, bookingID uuid.UUID, userID uuid.UUID) (int64, error)
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type MessagingHandler struct {
	conversations conversationLister
	messages      messagingService
	log           *zap.Logger
}

type sendMessageRequest struct {
	ReceiverID  *string `json:"receiver_id" validate:"omitempty,uuid"`
	MessageText string  `json:"message_text" validate:"required"`
}

func NewMessagingHandler(conversations conversationLister, messages messagingService, log *zap.Logger) *MessagingHandler {
	return &MessagingHandler{
		conversations: conversations,
		messages:      messages,
		log:           log,
	}
}

func (h *MessagingHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations := h.conversations.ListConversations(c.UserContext(), userID)
	return c.JSON(fiber.Map{"conversations": conversations})
}

// UnreadCount reports 0 when the count cannot be read.
func (h *MessagingHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	count, err := h.messages.GetUnreadCount(c.UserContext(), userID)
	if err != nil {
		h.log.Warn("unread count failed; reporting zero",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		count = 0
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

func (h *MessagingHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	messages, err := h.messages.GetMessages(c.UserContext(), bookingID, userID)
	if err != nil {
		return h.mapMessagingError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (h *MessagingHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request",
			"details": utils.FormatValidationErrors(err),
		})
	}

	input := services.SendMessageInput{
		BookingID:   bookingID,
		MessageText: req.MessageText,
	}
	if req.ReceiverID != nil {
		receiverID, err := uuid.Parse(*req.ReceiverID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid receiver id"})
		}
		input.ReceiverID = &receiverID
	}

	message, err := h.messages.SendMessage(c.UserContext(), userID, input)
	if err != nil {
		return h.mapMessagingError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *MessagingHandler) MarkConversationRead(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookingID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	updated, err := h.messages.MarkConversationRead(c.UserContext(), bookingID, userID)
	if err != nil {
		return h.mapMessagingError(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}

func (h *MessagingHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	messageID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message id"})
	}

	updated, err := h.messages.MarkRead(c.UserContext(), messageID, userID)
	if err != nil {
		return h.mapMessagingError(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, errors.New("missing user id")
	}
	return uuid.Parse(userIDStr)
}

func (h *MessagingHandler) mapMessagingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthenticated"})
	case errors.Is(err, services.ErrAccessDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
	case errors.Is(err, services.ErrRecipientUnresolved):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Recipient is not linked to an account"})
	case errors.Is(err, services.ErrBookingClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Booking is closed for messaging"})
	default:
		h.log.Error("messaging request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process message request"})
	}
}
