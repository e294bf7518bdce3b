package services

import (
	"context"
	"sync"
	"time"

	"github.com/digitalcloudassets/kutable-sub001/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultNotificationTimeout = 30 * time.Second

type NotificationJob struct {
	BookingID   uuid.UUID `json:"booking_id"`
	ReceiverID  uuid.UUID `json:"receiver_id"`
	SenderID    uuid.UUID `json:"sender_id"`
	MessageText string    `json:"message_text"`
}

// NotificationQueue hands a job off the send path. Enqueue must not block and
// has no error to report.
type NotificationQueue interface {
	Enqueue(job NotificationJob)
}

// MessageNotifier is the best-effort side channel a queue drains into.
// Implementations log their own failures.
type MessageNotifier interface {
	NotifyNewMessage(ctx context.Context, bookingID, receiverID uuid.UUID, messageText string, senderID uuid.UUID)
}

// Notify runs job through n.
func (job NotificationJob) Notify(ctx context.Context, n MessageNotifier) {
	n.NotifyNewMessage(ctx, job.BookingID, job.ReceiverID, job.MessageText, job.SenderID)
}

// WorkerPool runs notification jobs on a fixed set of goroutines, detached
// from the request that produced them.
type WorkerPool struct {
	jobs    chan NotificationJob
	handler MessageNotifier
	workers int
	timeout time.Duration
	log     *zap.Logger
}

func NewWorkerPool(handler MessageNotifier, workers int, size int, log *zap.Logger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		jobs:    make(chan NotificationJob, size),
		handler: handler,
		workers: workers,
		timeout: defaultNotificationTimeout,
		log:     log,
	}
}

// Enqueue drops the job when the buffer is full.
func (p *WorkerPool) Enqueue(job NotificationJob) {
	select {
	case p.jobs <- job:
	default:
		metrics.NotificationsDropped.Inc()
		p.log.Warn("notification queue full; dropping job",
			zap.String("booking_id", job.BookingID.String()),
			zap.String("receiver_id", job.ReceiverID.String()),
		)
	}
}

// Run processes jobs until ctx is cancelled.
func (p *WorkerPool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-p.jobs:
					p.process(ctx, job)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

func (p *WorkerPool) process(ctx context.Context, job NotificationJob) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("notification worker panic",
				zap.String("booking_id", job.BookingID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	job.Notify(jobCtx, p.handler)
}
