package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/digitalcloudassets/kutable-sub001/internal/metrics"
	"github.com/digitalcloudassets/kutable-sub001/internal/services"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const deliverTimeout = 30 * time.Second

// KafkaQueue publishes notification jobs to a topic. Writes are async so
// Enqueue never waits on the broker.
type KafkaQueue struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaQueue(brokers []string, topic string, log *zap.Logger) *KafkaQueue {
	q := &KafkaQueue{log: log}
	q.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion:   q.completed,
	}
	return q
}

func (q *KafkaQueue) Enqueue(job services.NotificationJob) {
	value, err := json.Marshal(job)
	if err != nil {
		metrics.NotificationsDropped.Inc()
		q.log.Error("encode notification job", zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(job.BookingID.String()),
		Value: value,
		Time:  time.Now(),
	}
	// Async writers return immediately; failures arrive in completed.
	if err := q.writer.WriteMessages(context.Background(), msg); err != nil {
		metrics.NotificationsDropped.Inc()
		q.log.Warn("enqueue notification job failed",
			zap.String("booking_id", job.BookingID.String()),
			zap.Error(err),
		)
	}
}

func (q *KafkaQueue) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	metrics.NotificationsDropped.Add(float64(len(messages)))
	q.log.Warn("notification jobs not written",
		zap.Int("count", len(messages)),
		zap.Error(err),
	)
}

func (q *KafkaQueue) Close() error {
	return q.writer.Close()
}

// KafkaConsumer reads notification jobs from the topic and delivers them one
// at a time. Offsets are committed whether or not delivery succeeded.
type KafkaConsumer struct {
	reader  *kafka.Reader
	handler services.MessageNotifier
	log     *zap.Logger
}

func NewKafkaConsumer(brokers []string, topic, groupID string, handler services.MessageNotifier, log *zap.Logger) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &KafkaConsumer{reader: r, handler: handler, log: log}
}

func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, kafka.ErrGroupClosed) {
				return nil
			}
			c.log.Warn("kafka read error", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		c.handle(ctx, m)
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, m kafka.Message) {
	var job services.NotificationJob
	if err := json.Unmarshal(m.Value, &job); err != nil {
		c.log.Warn("discarding undecodable notification job",
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()

	job.Notify(jobCtx, c.handler)
}
