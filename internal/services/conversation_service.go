package services

import (
	"context"
	"sort"

	"github.com/digitalcloudassets/kutable-sub001/internal/metrics"
	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type bookingLister interface {
	ListForParticipant(
		ctx context.Context,
		userID uuid.UUID,
		side models.ParticipantType,
		statuses []string,
	) ([]models.BookingParticipants, error)
}

type summaryReader interface {
	SummariesForBookings(
		ctx context.Context,
		readerID uuid.UUID,
		bookingIDs []uuid.UUID,
	) (map[uuid.UUID]models.MessageSummary, error)
}

type ConversationService struct {
	bookings bookingLister
	messages summaryReader
	log      *zap.Logger
}

func NewConversationService(bookings bookingLister, messages summaryReader, log *zap.Logger) *ConversationService {
	return &ConversationService{
		bookings: bookings,
		messages: messages,
		log:      log,
	}
}

// ListConversations derives the user's conversations from their active
// bookings. Failures are logged and yield an empty list.
func (s *ConversationService) ListConversations(ctx context.Context, userID uuid.UUID) []models.Conversation {
	conversations, err := s.listConversations(ctx, userID)
	if err != nil {
		metrics.ConversationListFailures.Inc()
		s.log.Warn("list conversations failed; returning empty list",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return []models.Conversation{}
	}
	return conversations
}

func (s *ConversationService) listConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	if userID == uuid.Nil {
		return []models.Conversation{}, nil
	}

	asBarber, err := s.bookings.ListForParticipant(ctx, userID, models.ParticipantBarber, models.MessagingStatuses)
	if err != nil {
		return nil, err
	}
	asClient, err := s.bookings.ListForParticipant(ctx, userID, models.ParticipantClient, models.MessagingStatuses)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(asBarber)+len(asClient))
	conversations := make([]models.Conversation, 0, len(asBarber)+len(asClient))
	bookingIDs := make([]uuid.UUID, 0, len(asBarber)+len(asClient))

	add := func(bookings []models.BookingParticipants, role models.ParticipantType) {
		for i := range bookings {
			booking := &bookings[i]
			if _, ok := seen[booking.ID]; ok {
				continue
			}
			seen[booking.ID] = struct{}{}
			bookingIDs = append(bookingIDs, booking.ID)
			conversations = append(conversations, models.Conversation{
				BookingID:       booking.ID,
				Participant:     booking.Counterpart(role),
				ServiceName:     booking.ServiceName,
				AppointmentDate: booking.AppointmentDate,
				AppointmentTime: booking.AppointmentTime,
				Status:          booking.Status,
			})
		}
	}
	// Barber rows go first so a self-booking keeps the barber view.
	add(asBarber, models.ParticipantBarber)
	add(asClient, models.ParticipantClient)

	summaries, err := s.messages.SummariesForBookings(ctx, userID, bookingIDs)
	if err != nil {
		return nil, err
	}
	for i := range conversations {
		summary := summaries[conversations[i].BookingID]
		conversations[i].LastMessage = summary.LastMessage
		conversations[i].UnreadCount = summary.UnreadCount
	}

	sortConversations(conversations)
	return conversations, nil
}

// sortConversations orders by last message time, newest first. Conversations
// without messages follow, newest appointment first.
func sortConversations(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		switch {
		case a.LastMessage != nil && b.LastMessage != nil:
			return a.LastMessage.CreatedAt.After(b.LastMessage.CreatedAt)
		case a.LastMessage != nil:
			return true
		case b.LastMessage != nil:
			return false
		}
		if a.AppointmentDate != b.AppointmentDate {
			return a.AppointmentDate > b.AppointmentDate
		}
		return a.AppointmentTime > b.AppointmentTime
	})
}
