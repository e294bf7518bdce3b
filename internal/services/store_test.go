package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/digitalcloudassets/kutable-sub001/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memoryStore stands in for the booking and message repositories.
type memoryStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]models.BookingParticipants
	messages []models.Message
	clock    time.Time
	creates  int

	listErr    error
	summaryErr error
	createErr  error
	markErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bookings: make(map[uuid.UUID]models.BookingParticipants),
		clock:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memoryStore) addBooking(b models.BookingParticipants) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
}

func (s *memoryStore) GetParticipants(_ context.Context, bookingID uuid.UUID) (*models.BookingParticipants, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &b, nil
}

func (s *memoryStore) ListForParticipant(
	_ context.Context,
	userID uuid.UUID,
	side models.ParticipantType,
	statuses []string,
) ([]models.BookingParticipants, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	var out []models.BookingParticipants
	for _, b := range s.bookings {
		linked := b.Client.UserID
		if side == models.ParticipantBarber {
			linked = b.Barber.UserID
		}
		if linked == nil || *linked != userID || !containsStatus(statuses, b.Status) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentDate > out[j].AppointmentDate
	})
	return out, nil
}

func (s *memoryStore) Create(_ context.Context, input repository.CreateMessageInput) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.creates++
	s.clock = s.clock.Add(time.Second)
	message := models.Message{
		ID:          uuid.New(),
		BookingID:   input.BookingID,
		SenderID:    input.SenderID,
		ReceiverID:  input.ReceiverID,
		MessageText: input.MessageText,
		CreatedAt:   s.clock,
	}
	s.messages = append(s.messages, message)
	return &message, nil
}

func (s *memoryStore) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.messages {
		if m.BookingID == bookingID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) CountUnread(_ context.Context, receiverID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, m := range s.messages {
		if m.ReceiverID == receiverID && m.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) MarkRead(_ context.Context, messageID uuid.UUID, readerID uuid.UUID) (int64, error) {
	return s.markWhere(func(m models.Message) bool { return m.ID == messageID && m.ReceiverID == readerID })
}

func (s *memoryStore) MarkBookingRead(_ context.Context, bookingID uuid.UUID, readerID uuid.UUID) (int64, error) {
	return s.markWhere(func(m models.Message) bool { return m.BookingID == bookingID && m.ReceiverID == readerID })
}

func (s *memoryStore) markWhere(match func(models.Message) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return 0, s.markErr
	}
	s.clock = s.clock.Add(time.Second)
	var updated int64
	for i := range s.messages {
		if s.messages[i].ReadAt == nil && match(s.messages[i]) {
			readAt := s.clock
			s.messages[i].ReadAt = &readAt
			updated++
		}
	}
	return updated, nil
}

func (s *memoryStore) SummariesForBookings(
	_ context.Context,
	readerID uuid.UUID,
	bookingIDs []uuid.UUID,
) (map[uuid.UUID]models.MessageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	out := make(map[uuid.UUID]models.MessageSummary, len(bookingIDs))
	for _, id := range bookingIDs {
		var summary models.MessageSummary
		for i := range s.messages {
			m := s.messages[i]
			if m.BookingID != id {
				continue
			}
			if summary.LastMessage == nil || !m.CreatedAt.Before(summary.LastMessage.CreatedAt) {
				latest := m
				summary.LastMessage = &latest
			}
			if m.ReceiverID == readerID && m.ReadAt == nil {
				summary.UnreadCount++
			}
		}
		out[id] = summary
	}
	return out, nil
}

func containsStatus(statuses []string, status string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []NotificationJob
}

func (q *recordingQueue) Enqueue(job NotificationJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

type recordingPublisher struct {
	published []models.Message
	err       error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, message models.Message) error {
	p.published = append(p.published, message)
	return p.err
}

var errStoreDown = errors.New("store unavailable")

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func strPtr(s string) *string {
	return &s
}

// testBooking builds a booking between a barber and a client. A nil user id
// leaves that profile unclaimed.
func testBooking(barberUser, clientUser *uuid.UUID, status, date string) models.BookingParticipants {
	return models.BookingParticipants{
		Booking: models.Booking{
			ID:              uuid.New(),
			BarberID:        uuid.New(),
			ClientID:        uuid.New(),
			ServiceName:     "Skin fade",
			AppointmentDate: date,
			AppointmentTime: "10:30",
			Status:          status,
		},
		Barber: models.BarberProfile{
			UserID:       barberUser,
			BusinessName: "Sharp Cuts",
			OwnerName:    "Xavier",
			Phone:        strPtr("+15550001111"),
			Email:        strPtr("barber@example.com"),
			SMSConsent:   true,
			EmailConsent: true,
		},
		Client: models.ClientProfile{
			UserID:       clientUser,
			FirstName:    "Yara",
			LastName:     "Young",
			Phone:        strPtr("+15550002222"),
			Email:        strPtr("client@example.com"),
			SMSConsent:   true,
			EmailConsent: true,
		},
	}
}
