package services

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrAccessDenied        = errors.New("access denied")
	ErrNotFound            = errors.New("not found")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrRecipientUnresolved = errors.New("recipient has no linked account")
	ErrBookingClosed       = errors.New("booking is closed for messaging")
)
