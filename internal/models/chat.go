package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ParticipantType string

const (
	ParticipantBarber ParticipantType = "barber"
	ParticipantClient ParticipantType = "client"
)

// Participant is one side of a booking. A participant whose profile is not
// linked to an auth user is unresolved: it can be displayed but never
// addressed. Read the id through UserID so that case cannot be skipped.
type Participant struct {
	userID   uuid.UUID
	resolved bool
	Name     string
	Type     ParticipantType
	Avatar   *string
}

func ResolvedParticipant(userID uuid.UUID, name string, kind ParticipantType) Participant {
	return Participant{userID: userID, resolved: true, Name: name, Type: kind}
}

func UnresolvedParticipant(name string, kind ParticipantType) Participant {
	return Participant{Name: name, Type: kind}
}

func newParticipant(userID *uuid.UUID, name string, kind ParticipantType, avatar *string) Participant {
	p := UnresolvedParticipant(name, kind)
	if userID != nil && *userID != uuid.Nil {
		p = ResolvedParticipant(*userID, name, kind)
	}
	p.Avatar = avatar
	return p
}

func (p Participant) UserID() (uuid.UUID, bool) {
	return p.userID, p.resolved
}

func (p Participant) Resolved() bool {
	return p.resolved
}

// Ref returns the compact reference used on messages. ok is false when unresolved.
func (p Participant) Ref() (ParticipantRef, bool) {
	if !p.resolved {
		return ParticipantRef{}, false
	}
	return ParticipantRef{ID: p.userID, Name: p.Name, Type: p.Type}, true
}

type participantJSON struct {
	ID     *uuid.UUID      `json:"id"`
	Name   string          `json:"name"`
	Type   ParticipantType `json:"type"`
	Avatar *string         `json:"avatar,omitempty"`
}

func (p Participant) MarshalJSON() ([]byte, error) {
	out := participantJSON{Name: p.Name, Type: p.Type, Avatar: p.Avatar}
	if p.resolved {
		id := p.userID
		out.ID = &id
	}
	return json.Marshal(out)
}

func (p *Participant) UnmarshalJSON(data []byte) error {
	var in participantJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = newParticipant(in.ID, in.Name, in.Type, in.Avatar)
	return nil
}

type ParticipantRef struct {
	ID   uuid.UUID       `json:"id"`
	Name string          `json:"name"`
	Type ParticipantType `json:"type"`
}

type Message struct {
	ID          uuid.UUID       `json:"id"`
	BookingID   uuid.UUID       `json:"booking_id"`
	SenderID    uuid.UUID       `json:"sender_id"`
	ReceiverID  uuid.UUID       `json:"receiver_id"`
	MessageText string          `json:"message_text"`
	CreatedAt   time.Time       `json:"created_at"`
	ReadAt      *time.Time      `json:"read_at"`
	Sender      *ParticipantRef `json:"sender,omitempty"`
	Receiver    *ParticipantRef `json:"receiver,omitempty"`
}

// MessageSummary is the per-booking preview used by conversation lists.
type MessageSummary struct {
	LastMessage *Message
	UnreadCount int
}

// Conversation is derived from a booking on every request and never stored.
type Conversation struct {
	BookingID       uuid.UUID   `json:"booking_id"`
	Participant     Participant `json:"participant"`
	LastMessage     *Message    `json:"last_message,omitempty"`
	UnreadCount     int         `json:"unread_count"`
	ServiceName     string      `json:"service_name"`
	AppointmentDate string      `json:"appointment_date"`
	AppointmentTime string      `json:"appointment_time"`
	Status          string      `json:"status"`
}
