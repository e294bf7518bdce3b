package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, booking_id, sender_id, receiver_id, message_text, created_at, read_at`

type CreateMessageInput struct {
	BookingID   uuid.UUID
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	MessageText string
}

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	input CreateMessageInput,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (booking_id, sender_id, receiver_id, message_text)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + messageColumns

	message, err := scanMessage(r.db.QueryRow(
		ctx,
		query,
		input.BookingID,
		input.SenderID,
		input.ReceiverID,
		input.MessageText,
	))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

func (r *MessageRepository) ListByBooking(
	ctx context.Context,
	bookingID uuid.UUID,
) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// SummariesForBookings loads the latest message and the reader's unread count
// for every booking. The two point queries per booking go out in one batch.
func (r *MessageRepository) SummariesForBookings(
	ctx context.Context,
	readerID uuid.UUID,
	bookingIDs []uuid.UUID,
) (map[uuid.UUID]models.MessageSummary, error) {
	summaries := make(map[uuid.UUID]models.MessageSummary, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return summaries, nil
	}

	latestQuery := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE booking_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	unreadQuery := `
		SELECT COUNT(*)
		FROM messages
		WHERE booking_id = $1
		  AND receiver_id = $2
		  AND read_at IS NULL
	`

	batch := &pgx.Batch{}
	for _, bookingID := range bookingIDs {
		bookingID := bookingID
		batch.Queue(latestQuery, bookingID).QueryRow(func(row pgx.Row) error {
			message, err := scanMessage(row)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			if err != nil {
				return err
			}
			summary := summaries[bookingID]
			summary.LastMessage = message
			summaries[bookingID] = summary
			return nil
		})
		batch.Queue(unreadQuery, bookingID, readerID).QueryRow(func(row pgx.Row) error {
			var count int
			if err := row.Scan(&count); err != nil {
				return err
			}
			summary := summaries[bookingID]
			summary.UnreadCount = count
			summaries[bookingID] = summary
			return nil
		})
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("load conversation summaries: %w", err)
	}

	return summaries, nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, receiverID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE receiver_id = $1
		  AND read_at IS NULL
	`, receiverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return count, nil
}

// MarkRead stamps read_at on one message addressed to readerID. Already-read
// and foreign messages match no rows.
func (r *MessageRepository) MarkRead(
	ctx context.Context,
	messageID uuid.UUID,
	readerID uuid.UUID,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET read_at = NOW()
		WHERE id = $1
		  AND receiver_id = $2
		  AND read_at IS NULL
	`, messageID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark message read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) MarkBookingRead(
	ctx context.Context,
	bookingID uuid.UUID,
	readerID uuid.UUID,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET read_at = NOW()
		WHERE booking_id = $1
		  AND receiver_id = $2
		  AND read_at IS NULL
	`, bookingID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var message models.Message
	err := row.Scan(
		&message.ID,
		&message.BookingID,
		&message.SenderID,
		&message.ReceiverID,
		&message.MessageText,
		&message.CreatedAt,
		&message.ReadAt,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}
