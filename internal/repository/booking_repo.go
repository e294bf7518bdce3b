package repository

import (
	"context"
	"fmt"

	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bookingParticipantsSelect = `
	SELECT
		b.id,
		b.barber_id,
		b.client_id,
		COALESCE(s.name, ''),
		b.appointment_date::text,
		COALESCE(to_char(b.appointment_time, 'HH24:MI'), ''),
		b.status,
		b.created_at,
		bp.id,
		bp.user_id,
		bp.business_name,
		bp.owner_name,
		bp.phone,
		bp.email,
		bp.avatar_url,
		bp.sms_consent,
		bp.email_consent,
		cp.id,
		cp.user_id,
		cp.first_name,
		cp.last_name,
		cp.phone,
		cp.email,
		cp.avatar_url,
		cp.sms_consent,
		cp.email_consent
	FROM bookings b
	JOIN barber_profiles bp ON bp.id = b.barber_id
	JOIN client_profiles cp ON cp.id = b.client_id
	LEFT JOIN services s ON s.id = b.service_id
`

type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetParticipants loads a booking with both profiles in one query.
func (r *BookingRepository) GetParticipants(
	ctx context.Context,
	bookingID uuid.UUID,
) (*models.BookingParticipants, error) {
	query := bookingParticipantsSelect + `
	WHERE b.id = $1
	`

	booking, err := scanBookingParticipants(r.db.QueryRow(ctx, query, bookingID))
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ListForParticipant returns the bookings where userID is the linked user on
// the given side, restricted to statuses.
func (r *BookingRepository) ListForParticipant(
	ctx context.Context,
	userID uuid.UUID,
	side models.ParticipantType,
	statuses []string,
) ([]models.BookingParticipants, error) {
	actorColumn := "cp.user_id"
	if side == models.ParticipantBarber {
		actorColumn = "bp.user_id"
	}

	query := bookingParticipantsSelect + fmt.Sprintf(`
	WHERE %s = $1
	  AND b.status = ANY($2)
	ORDER BY b.appointment_date DESC, b.appointment_time DESC, b.id
	`, actorColumn)

	rows, err := r.db.Query(ctx, query, userID, statuses)
	if err != nil {
		return nil, fmt.Errorf("list %s bookings: %w", side, err)
	}
	defer rows.Close()

	bookings := make([]models.BookingParticipants, 0)
	for rows.Next() {
		booking, err := scanBookingParticipants(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s booking: %w", side, err)
		}
		bookings = append(bookings, *booking)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func scanBookingParticipants(row pgx.Row) (*models.BookingParticipants, error) {
	var b models.BookingParticipants
	err := row.Scan(
		&b.ID,
		&b.BarberID,
		&b.ClientID,
		&b.ServiceName,
		&b.AppointmentDate,
		&b.AppointmentTime,
		&b.Status,
		&b.CreatedAt,
		&b.Barber.ID,
		&b.Barber.UserID,
		&b.Barber.BusinessName,
		&b.Barber.OwnerName,
		&b.Barber.Phone,
		&b.Barber.Email,
		&b.Barber.AvatarURL,
		&b.Barber.SMSConsent,
		&b.Barber.EmailConsent,
		&b.Client.ID,
		&b.Client.UserID,
		&b.Client.FirstName,
		&b.Client.LastName,
		&b.Client.Phone,
		&b.Client.Email,
		&b.Client.AvatarURL,
		&b.Client.SMSConsent,
		&b.Client.EmailConsent,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
