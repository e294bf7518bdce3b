package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/digitalcloudassets/kutable-sub001/internal/metrics"
	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/digitalcloudassets/kutable-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type participantReader interface {
	GetParticipants(ctx context.Context, bookingID uuid.UUID) (*models.BookingParticipants, error)
}

type messageStore interface {
	Create(ctx context.Context, input repository.CreateMessageInput) (*models.Message, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.Message, error)
	CountUnread(ctx context.Context, receiverID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, messageID uuid.UUID, readerID uuid.UUID) (int64, error)
	MarkBookingRead(ctx context.Context, bookingID uuid.UUID, readerID uuid.UUID) (int64, error)
}

// MessagePublisher pushes a persisted message to realtime listeners when the
// store's own change-feed is not in use.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, message models.Message) error
}

type SendMessageInput struct {
	BookingID   uuid.UUID
	ReceiverID  *uuid.UUID
	MessageText string
}

type MessageService struct {
	bookings      participantReader
	messages      messageStore
	notifications NotificationQueue
	publisher     MessagePublisher
	log           *zap.Logger
}

func NewMessageService(
	bookings participantReader,
	messages messageStore,
	notifications NotificationQueue,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		bookings:      bookings,
		messages:      messages,
		notifications: notifications,
		log:           log,
	}
}

func (s *MessageService) SetPublisher(p MessagePublisher) {
	s.publisher = p
}

// AuthorizeBooking loads the booking and confirms userID is one of its two
// linked users.
func (s *MessageService) AuthorizeBooking(
	ctx context.Context,
	bookingID uuid.UUID,
	userID uuid.UUID,
) (*models.BookingParticipants, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	booking, err := s.bookings.GetParticipants(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if _, ok := booking.Role(userID); !ok {
		return nil, ErrAccessDenied
	}
	return booking, nil
}

// GetMessages returns the booking's history, oldest first.
func (s *MessageService) GetMessages(
	ctx context.Context,
	bookingID uuid.UUID,
	userID uuid.UUID,
) ([]models.Message, error) {
	booking, err := s.AuthorizeBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	for i := range messages {
		booking.Annotate(&messages[i])
	}
	return messages, nil
}

func (s *MessageService) SendMessage(
	ctx context.Context,
	senderID uuid.UUID,
	input SendMessageInput,
) (*models.Message, error) {
	if senderID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	text, err := ValidateMessageText(input.MessageText)
	if err != nil {
		return nil, err
	}
	if input.ReceiverID == nil || *input.ReceiverID == uuid.Nil {
		return nil, ErrRecipientUnresolved
	}

	booking, err := s.AuthorizeBooking(ctx, input.BookingID, senderID)
	if err != nil {
		return nil, err
	}

	role, _ := booking.Role(senderID)
	counterpartID, ok := booking.Counterpart(role).UserID()
	if !ok {
		return nil, ErrRecipientUnresolved
	}
	if *input.ReceiverID != counterpartID {
		return nil, ErrAccessDenied
	}
	if !models.IsMessagingStatus(booking.Status) {
		return nil, ErrBookingClosed
	}

	message, err := s.messages.Create(ctx, repository.CreateMessageInput{
		BookingID:   booking.ID,
		SenderID:    senderID,
		ReceiverID:  counterpartID,
		MessageText: text,
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()
	booking.Annotate(message)

	if s.publisher != nil {
		if err := s.publisher.PublishMessage(ctx, *message); err != nil {
			s.log.Warn("publish realtime message failed",
				zap.String("booking_id", message.BookingID.String()),
				zap.String("message_id", message.ID.String()),
				zap.Error(err),
			)
		}
	}

	if s.notifications != nil {
		s.notifications.Enqueue(NotificationJob{
			BookingID:   message.BookingID,
			ReceiverID:  message.ReceiverID,
			SenderID:    message.SenderID,
			MessageText: message.MessageText,
		})
	}

	return message, nil
}

// MarkRead is idempotent; it only touches a message addressed to userID.
func (s *MessageService) MarkRead(ctx context.Context, messageID uuid.UUID, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, ErrUnauthenticated
	}
	return s.messages.MarkRead(ctx, messageID, userID)
}

// MarkConversationRead is idempotent; it only touches messages addressed to userID.
func (s *MessageService) MarkConversationRead(ctx context.Context, bookingID uuid.UUID, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, ErrUnauthenticated
	}
	return s.messages.MarkBookingRead(ctx, bookingID, userID)
}

func (s *MessageService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, ErrUnauthenticated
	}
	return s.messages.CountUnread(ctx, userID)
}
