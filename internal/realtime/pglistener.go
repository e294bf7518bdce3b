package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/digitalcloudassets/kutable-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// MessageInsertedChannel is the NOTIFY channel the messages insert trigger uses.
const MessageInsertedChannel = "message_inserted"

// PGListener feeds the broker from Postgres LISTEN/NOTIFY on a dedicated
// connection, reconnecting with exponential backoff. Notifications sent while
// disconnected are lost.
type PGListener struct {
	connString  string
	channel     string
	maxInterval time.Duration
	log         *zap.Logger
}

func NewPGListener(connString string, log *zap.Logger) *PGListener {
	return &PGListener{
		connString:  connString,
		channel:     MessageInsertedChannel,
		maxInterval: 30 * time.Second,
		log:         log,
	}
}

func (l *PGListener) Run(ctx context.Context, sink Sink) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = l.maxInterval
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(
		func() error {
			err := l.listen(ctx, sink, b)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		},
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			l.log.Warn("realtime listener disconnected; retrying",
				zap.String("channel", l.channel),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		},
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (l *PGListener) listen(ctx context.Context, sink Sink, b *backoff.ExponentialBackOff) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	b.Reset()
	l.log.Info("realtime listener connected", zap.String("channel", l.channel))

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		message, err := DecodeMessage([]byte(notification.Payload))
		if err != nil {
			l.log.Warn("discarding undecodable realtime payload",
				zap.String("channel", l.channel),
				zap.Error(err),
			)
			continue
		}
		sink.Publish(message)
	}
}

// DecodeMessage parses a message row as emitted by row_to_json.
func DecodeMessage(payload []byte) (models.Message, error) {
	var message models.Message
	if err := json.Unmarshal(payload, &message); err != nil {
		return models.Message{}, fmt.Errorf("decode message payload: %w", err)
	}
	if message.ID == uuid.Nil || message.BookingID == uuid.Nil {
		return models.Message{}, errors.New("decode message payload: missing id or booking_id")
	}
	return message, nil
}
