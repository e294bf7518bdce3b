package models

import (
	"strings"

	"github.com/google/uuid"
)

type BarberProfile struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id"`
	BusinessName string     `json:"business_name"`
	OwnerName    string     `json:"owner_name"`
	Phone        *string    `json:"phone,omitempty"`
	Email        *string    `json:"email,omitempty"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	SMSConsent   bool       `json:"sms_consent"`
	EmailConsent bool       `json:"email_consent"`
}

type ClientProfile struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        *string    `json:"phone,omitempty"`
	Email        *string    `json:"email,omitempty"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	SMSConsent   bool       `json:"sms_consent"`
	EmailConsent bool       `json:"email_consent"`
}

func (p BarberProfile) DisplayName() string {
	if name := strings.TrimSpace(p.BusinessName); name != "" {
		return name
	}
	return strings.TrimSpace(p.OwnerName)
}

func (p ClientProfile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p BarberProfile) Participant() Participant {
	return newParticipant(p.UserID, p.DisplayName(), ParticipantBarber, p.AvatarURL)
}

func (p ClientProfile) Participant() Participant {
	return newParticipant(p.UserID, p.DisplayName(), ParticipantClient, p.AvatarURL)
}

// Contact is the notification view of a profile.
type Contact struct {
	Name         string
	Phone        string
	Email        string
	SMSConsent   bool
	EmailConsent bool
}

func (p BarberProfile) Contact() Contact {
	return Contact{
		Name:         p.DisplayName(),
		Phone:        deref(p.Phone),
		Email:        deref(p.Email),
		SMSConsent:   p.SMSConsent,
		EmailConsent: p.EmailConsent,
	}
}

func (p ClientProfile) Contact() Contact {
	return Contact{
		Name:         p.DisplayName(),
		Phone:        deref(p.Phone),
		Email:        deref(p.Email),
		SMSConsent:   p.SMSConsent,
		EmailConsent: p.EmailConsent,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
