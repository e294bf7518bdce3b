package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BookingStatusPending         = "pending"
	BookingStatusConfirmed       = "confirmed"
	BookingStatusCompleted       = "completed"
	BookingStatusCancelled       = "cancelled"
	BookingStatusRefundRequested = "refund_requested"
)

// MessagingStatuses are the booking statuses that keep a conversation open.
var MessagingStatuses = []string{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCompleted,
}

func IsMessagingStatus(status string) bool {
	for _, s := range MessagingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Booking struct {
	ID              uuid.UUID `json:"id"`
	BarberID        uuid.UUID `json:"barber_id"`
	ClientID        uuid.UUID `json:"client_id"`
	ServiceName     string    `json:"service_name"`
	AppointmentDate string    `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// BookingParticipants is a booking joined with both of its profiles.
type BookingParticipants struct {
	Booking
	Barber BarberProfile `json:"barber"`
	Client ClientProfile `json:"client"`
}

// Role returns the role userID plays on the booking. Barber wins a self-booking.
func (b *BookingParticipants) Role(userID uuid.UUID) (ParticipantType, bool) {
	if b.Barber.UserID != nil && *b.Barber.UserID == userID {
		return ParticipantBarber, true
	}
	if b.Client.UserID != nil && *b.Client.UserID == userID {
		return ParticipantClient, true
	}
	return "", false
}

// Participant resolves one side of the booking.
func (b *BookingParticipants) Participant(side ParticipantType) Participant {
	if side == ParticipantBarber {
		return b.Barber.Participant()
	}
	return b.Client.Participant()
}

// Counterpart resolves the side opposite to role.
func (b *BookingParticipants) Counterpart(role ParticipantType) Participant {
	if role == ParticipantBarber {
		return b.Client.Participant()
	}
	return b.Barber.Participant()
}

// Annotate fills the sender and receiver refs on message from the booking's
// resolved participants.
func (b *BookingParticipants) Annotate(message *Message) {
	refs := make(map[uuid.UUID]ParticipantRef, 2)
	// Client first so the barber ref wins a self-booking.
	for _, side := range []ParticipantType{ParticipantClient, ParticipantBarber} {
		if ref, ok := b.Participant(side).Ref(); ok {
			refs[ref.ID] = ref
		}
	}
	if ref, ok := refs[message.SenderID]; ok {
		sender := ref
		message.Sender = &sender
	}
	if ref, ok := refs[message.ReceiverID]; ok {
		receiver := ref
		message.Receiver = &receiver
	}
}
