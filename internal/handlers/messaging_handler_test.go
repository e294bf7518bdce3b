package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/digitalcloudassets/kutable-sub001/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type stubConversations struct {
	result     []models.Conversation
	lastUserID uuid.UUID
}

func (s *stubConversations) ListConversations(_ context.Context, userID uuid.UUID) []models.Conversation {
	s.lastUserID = userID
	return s.result
}

type stubMessaging struct {
	messagesResult []models.Message
	messagesErr    error
	sendResult     *models.Message
	sendErr        error
	markResult     int64
	markErr        error
	unreadResult   int
	unreadErr      error
	sendCalls      int
	lastSend       services.SendMessageInput
	lastUserID     uuid.UUID
	lastBookingID  uuid.UUID
	lastMessageID  uuid.UUID
}

func (s *stubMessaging) GetMessages(_ context.Context, bookingID uuid.UUID, userID uuid.UUID) ([]models.Message, error) {
	s.lastBookingID = bookingID
	s.lastUserID = userID
	return s.messagesResult, s.messagesErr
}

func (s *stubMessaging) SendMessage(_ context.Context, senderID uuid.UUID, input services.SendMessageInput) (*models.Message, error) {
	s.sendCalls++
	s.lastUserID = senderID
	s.lastSend = input
	return s.sendResult, s.sendErr
}

func (s *stubMessaging) MarkRead(_ context.Context, messageID uuid.UUID, userID uuid.UUID) (int64, error) {
	s.lastMessageID = messageID
	s.lastUserID = userID
	return s.markResult, s.markErr
}

func (s *stubMessaging) MarkConversationRead(_ context.Context, bookingID uuid.UUID, userID uuid.UUID) (int64, error) {
	s.lastBookingID = bookingID
	s.lastUserID = userID
	return s.markResult, s.markErr
}

func (s *stubMessaging) GetUnreadCount(_ context.Context, userID uuid.UUID) (int, error) {
	s.lastUserID = userID
	return s.unreadResult, s.unreadErr
}

func newMessagingApp(conversations *stubConversations, messaging *stubMessaging, userID string) *fiber.App {
	handler := NewMessagingHandler(conversations, messaging, zap.NewNop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})
	app.Get("/api/v1/conversations", handler.ListConversations)
	app.Get("/api/v1/messages/unread-count", handler.UnreadCount)
	app.Post("/api/v1/messages/:id/read", handler.MarkRead)
	app.Get("/api/v1/bookings/:id/messages", handler.GetMessages)
	app.Post("/api/v1/bookings/:id/messages", handler.SendMessage)
	app.Post("/api/v1/bookings/:id/messages/read", handler.MarkConversationRead)
	return app
}

func TestListConversationsReturnsConversations(t *testing.T) {
	userID := uuid.New()
	bookingID := uuid.New()
	conversations := &stubConversations{
		result: []models.Conversation{
			{
				BookingID:   bookingID,
				Participant: models.UnresolvedParticipant("Sharp Cuts", models.ParticipantBarber),
				LastMessage: &models.Message{
					ID:          uuid.New(),
					BookingID:   bookingID,
					MessageText: "See you tomorrow",
					CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				UnreadCount: 2,
				Status:      models.BookingStatusConfirmed,
			},
		},
	}
	app := newMessagingApp(conversations, &stubMessaging{}, userID.String())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if conversations.lastUserID != userID {
		t.Fatalf("unexpected user id %s", conversations.lastUserID)
	}

	var body struct {
		Conversations []struct {
			BookingID   uuid.UUID `json:"booking_id"`
			UnreadCount int       `json:"unread_count"`
			Participant struct {
				ID   *uuid.UUID `json:"id"`
				Name string     `json:"name"`
			} `json:"participant"`
		} `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Conversations) != 1 || body.Conversations[0].UnreadCount != 2 {
		t.Fatalf("unexpected response: %+v", body.Conversations)
	}
	if body.Conversations[0].Participant.ID != nil || body.Conversations[0].Participant.Name != "Sharp Cuts" {
		t.Fatalf("expected unresolved participant with null id, got %+v", body.Conversations[0].Participant)
	}
}

func TestListConversationsRequiresUser(t *testing.T) {
	app := newMessagingApp(&stubConversations{}, &stubMessaging{}, "not-a-uuid")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestUnreadCountFailsOpenToZero(t *testing.T) {
	messaging := &stubMessaging{unreadResult: 9, unreadErr: errors.New("db down")}
	app := newMessagingApp(&stubConversations{}, messaging, uuid.NewString())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/messages/unread-count", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.UnreadCount != 0 {
		t.Fatalf("expected 0 on failure, got %d", body.UnreadCount)
	}
}

func TestSendMessageReturnsCreated(t *testing.T) {
	senderID := uuid.New()
	receiverID := uuid.New()
	bookingID := uuid.New()
	messaging := &stubMessaging{
		sendResult: &models.Message{
			ID:          uuid.New(),
			BookingID:   bookingID,
			SenderID:    senderID,
			ReceiverID:  receiverID,
			MessageText: "Running 5 min late",
		},
	}
	app := newMessagingApp(&stubConversations{}, messaging, senderID.String())

	payload := fmt.Sprintf(`{"receiver_id":"%s","message_text":"Running 5 min late"}`, receiverID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/messages", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if messaging.lastSend.BookingID != bookingID || messaging.lastSend.ReceiverID == nil || *messaging.lastSend.ReceiverID != receiverID {
		t.Fatalf("unexpected send input %+v", messaging.lastSend)
	}

	var body struct {
		Message struct {
			ReadAt      *time.Time `json:"read_at"`
			MessageText string     `json:"message_text"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Message.MessageText != "Running 5 min late" || body.Message.ReadAt != nil {
		t.Fatalf("unexpected message %+v", body.Message)
	}
}

func TestSendMessageValidatesRequest(t *testing.T) {
	messaging := &stubMessaging{}
	app := newMessagingApp(&stubConversations{}, messaging, uuid.NewString())
	path := "/api/v1/bookings/" + uuid.NewString() + "/messages"

	for _, payload := range []string{
		`{"receiver_id":"not-a-uuid","message_text":"hi"}`,
		`{"receiver_id":"00000000-0000-0000-0000-00000000000g","message_text":"hi"}`,
		`{"receiver_id":"` + uuid.NewString() + `"}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", payload, resp.StatusCode)
		}
	}
	if messaging.sendCalls != 0 {
		t.Fatalf("expected service not called, got %d", messaging.sendCalls)
	}
}

func TestSendMessageNullReceiverReachesService(t *testing.T) {
	messaging := &stubMessaging{sendErr: services.ErrRecipientUnresolved}
	app := newMessagingApp(&stubConversations{}, messaging, uuid.NewString())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/messages",
		strings.NewReader(`{"receiver_id":null,"message_text":"hello?"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if messaging.lastSend.ReceiverID != nil {
		t.Fatalf("expected nil receiver passed through")
	}
}

func TestMessagingErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: message text is empty", services.ErrValidation), http.StatusBadRequest},
		{services.ErrUnauthenticated, http.StatusUnauthorized},
		{services.ErrAccessDenied, http.StatusForbidden},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrBookingClosed, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		messaging := &stubMessaging{messagesErr: tc.err}
		app := newMessagingApp(&stubConversations{}, messaging, uuid.NewString())

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/"+uuid.NewString()+"/messages", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("expected %d for %v, got %d", tc.status, tc.err, resp.StatusCode)
		}
	}
}

func TestGetMessagesRejectsInvalidBookingID(t *testing.T) {
	app := newMessagingApp(&stubConversations{}, &stubMessaging{}, uuid.NewString())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/bookings/42/messages", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMarkReadEndpoints(t *testing.T) {
	userID := uuid.New()
	messaging := &stubMessaging{markResult: 3}
	app := newMessagingApp(&stubConversations{}, messaging, userID.String())

	bookingID := uuid.New()
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/messages/read", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Updated int64 `json:"updated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Updated != 3 || messaging.lastBookingID != bookingID || messaging.lastUserID != userID {
		t.Fatalf("unexpected mark-read call: updated=%d booking=%s", body.Updated, messaging.lastBookingID)
	}

	messageID := uuid.New()
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/messages/"+messageID.String()+"/read", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK || messaging.lastMessageID != messageID {
		t.Fatalf("unexpected single mark-read: status=%d message=%s", resp.StatusCode, messaging.lastMessageID)
	}
}
